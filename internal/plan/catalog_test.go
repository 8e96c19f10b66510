package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCatalogAllowances(t *testing.T) {
	catalog := DefaultCatalog()

	free := catalog.Allowance(TierFree)
	assert.Equal(t, int64(100_000), free.AITokensMonthly)
	assert.Equal(t, int64(20), free.EmailSendsDaily)

	pro := catalog.Allowance(TierPro)
	assert.Greater(t, pro.AITokensMonthly, free.AITokensMonthly)
	assert.Greater(t, pro.EmailSendsDaily, free.EmailSendsDaily)
}

func TestAllowanceUnknownTierFallsBackToFree(t *testing.T) {
	catalog := DefaultCatalog()
	assert.Equal(t, catalog.Allowance(TierFree), catalog.Allowance(Tier("ENTERPRISE")))
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierPro, ParseTier("PRO"))
	assert.Equal(t, TierTeam, ParseTier("TEAM"))
	assert.Equal(t, TierFree, ParseTier("FREE"))
	assert.Equal(t, TierFree, ParseTier("bogus"))
}

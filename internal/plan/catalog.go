// Package plan holds the static plan catalog: subscription tier to
// resource allowance lookup. The catalog carries no per-workspace state;
// remaining allowance is always derived by the entitlement service.
package plan

// Tier identifies a subscription plan.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
	TierTeam Tier = "TEAM"
)

// Allowance defines the monthly and daily quotas granted by a tier.
type Allowance struct {
	AITokensMonthly int64 `mapstructure:"aiTokensMonthly"`
	EmailSendsDaily int64 `mapstructure:"emailSendsDaily"`
	MaxContacts     int64 `mapstructure:"maxContacts"`
}

// Catalog maps tiers to their allowances.
type Catalog map[Tier]Allowance

// DefaultCatalog returns the compiled-in plan allowances.
func DefaultCatalog() Catalog {
	return Catalog{
		TierFree: {
			AITokensMonthly: 100_000,
			EmailSendsDaily: 20,
			MaxContacts:     500,
		},
		TierPro: {
			AITokensMonthly: 1_000_000,
			EmailSendsDaily: 200,
			MaxContacts:     10_000,
		},
		TierTeam: {
			AITokensMonthly: 5_000_000,
			EmailSendsDaily: 1_000,
			MaxContacts:     100_000,
		},
	}
}

// ParseTier normalizes a tier string, defaulting unknown values to FREE.
func ParseTier(raw string) Tier {
	switch Tier(raw) {
	case TierPro:
		return TierPro
	case TierTeam:
		return TierTeam
	default:
		return TierFree
	}
}

// Allowance returns the allowance for a tier. Unknown tiers fall back to
// the FREE allowance so a corrupt plan column never grants unlimited usage.
func (c Catalog) Allowance(tier Tier) Allowance {
	if a, ok := c[tier]; ok {
		return a
	}
	return c[TierFree]
}

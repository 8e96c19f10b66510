package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/creatorhq/creditd/internal/clock"
	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	ledgerrepository "github.com/creatorhq/creditd/internal/ledger/repository"
	"github.com/creatorhq/creditd/internal/plan"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	workspacerepository "github.com/creatorhq/creditd/internal/workspace/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (workspacedomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&workspacedomain.Balance{}, &ledgerdomain.Entry{}))

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		Plans:      plan.NewStaticCatalogHolder(plan.DefaultCatalog()),
		Repo:       workspacerepository.Provide(),
		LedgerRepo: ledgerrepository.Provide(),
	})

	return svc, db, clk
}

func TestProvisionDefaultsToFree(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	overview, err := svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "ws_1"})
	require.NoError(t, err)

	assert.Equal(t, plan.TierFree, overview.Plan)
	assert.Equal(t, clk.Now(), overview.PeriodStart.UTC())
	assert.Equal(t, int64(0), overview.AITokensBalance)
	assert.Equal(t, int64(100_000), overview.AIPlanRemaining)
	assert.Equal(t, int64(20), overview.EmailDailyRemaining)
}

func TestProvisionRejectsDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "ws_1", Plan: "PRO"})
	require.NoError(t, err)

	_, err = svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "ws_1"})
	assert.ErrorIs(t, err, workspacedomain.ErrAlreadyExists)

	_, err = svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "  "})
	assert.ErrorIs(t, err, workspacedomain.ErrInvalidWorkspace)
}

func TestOverviewDerivesPlanUsageFromLedger(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "ws_1"})
	require.NoError(t, err)

	// Simulate consumption: one balance draw, one plan draw. Only the
	// plan draw counts against the allowance sum; both count as usage.
	ledgRepo := ledgerrepository.Provide()
	require.NoError(t, ledgRepo.Append(ctx, db, &ledgerdomain.Entry{
		ID:          1,
		WorkspaceID: "ws_1",
		Kind:        ledgerdomain.KindAI,
		Delta:       -400,
		Reason:      ledgerdomain.ReasonAIConsumeBalance,
		CreatedAt:   clk.Now(),
	}))
	require.NoError(t, ledgRepo.Append(ctx, db, &ledgerdomain.Entry{
		ID:          2,
		WorkspaceID: "ws_1",
		Kind:        ledgerdomain.KindAI,
		Delta:       -600,
		Reason:      ledgerdomain.ReasonAIConsumePlan,
		CreatedAt:   clk.Now(),
	}))

	overview, err := svc.Overview(ctx, "ws_1")
	require.NoError(t, err)

	assert.Equal(t, int64(1_000), overview.AIUsedThisPeriod)
	assert.Equal(t, int64(99_000), overview.AIPlanRemaining)
}

func TestOverviewNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Overview(context.Background(), "ws_ghost")
	assert.ErrorIs(t, err, workspacedomain.ErrNotFound)
}

func TestChangePlanTakesEffectImmediately(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "ws_1"})
	require.NoError(t, err)

	overview, err := svc.ChangePlan(ctx, "ws_1", plan.TierTeam)
	require.NoError(t, err)

	assert.Equal(t, plan.TierTeam, overview.Plan)
	assert.Equal(t, int64(5_000_000), overview.AIPlanRemaining)

	_, err = svc.ChangePlan(ctx, "ws_ghost", plan.TierPro)
	assert.ErrorIs(t, err, workspacedomain.ErrNotFound)
}

func TestAdvancePeriodResetsDerivedAllowance(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "ws_1"})
	require.NoError(t, err)

	require.NoError(t, ledgerrepository.Provide().Append(ctx, db, &ledgerdomain.Entry{
		ID:          1,
		WorkspaceID: "ws_1",
		Kind:        ledgerdomain.KindAI,
		Delta:       -100_000,
		Reason:      ledgerdomain.ReasonAIConsumePlan,
		CreatedAt:   clk.Now(),
	}))

	overview, err := svc.Overview(ctx, "ws_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), overview.AIPlanRemaining)

	clk.Advance(31 * 24 * time.Hour)
	require.NoError(t, svc.AdvancePeriod(ctx, "ws_1", clk.Now()))

	overview, err = svc.Overview(ctx, "ws_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), overview.AIUsedThisPeriod)
	assert.Equal(t, int64(100_000), overview.AIPlanRemaining)
	assert.Equal(t, int64(0), overview.EmailDailyUsed)
}

func TestResetDailyZeroesCounter(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Provision(ctx, workspacedomain.ProvisionRequest{WorkspaceID: "ws_1"})
	require.NoError(t, err)

	require.NoError(t, workspacerepository.Provide().UpdateEmailDailyUsed(ctx, db, "ws_1", 17, clk.Now()))

	require.NoError(t, svc.ResetDaily(ctx, "ws_1"))

	overview, err := svc.Overview(ctx, "ws_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), overview.EmailDailyUsed)
	assert.Equal(t, int64(20), overview.EmailDailyRemaining)

	assert.ErrorIs(t, svc.ResetDaily(ctx, "ws_ghost"), workspacedomain.ErrNotFound)
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/creatorhq/creditd/internal/clock"
	entitlementdomain "github.com/creatorhq/creditd/internal/entitlement/domain"
	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	obsmetrics "github.com/creatorhq/creditd/internal/observability/metrics"
	"github.com/creatorhq/creditd/internal/plan"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	"github.com/creatorhq/creditd/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Plans         *plan.CatalogHolder
	LedgerRepo    ledgerdomain.Repository
	WorkspaceRepo workspacedomain.Repository
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	plans         *plan.CatalogHolder
	ledgerRepo    ledgerdomain.Repository
	workspaceRepo workspacedomain.Repository
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) entitlementdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("entitlement.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		plans:         p.Plans,
		ledgerRepo:    p.LedgerRepo,
		workspaceRepo: p.WorkspaceRepo,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) CheckAndConsume(ctx context.Context, req entitlementdomain.ConsumeRequest) (*entitlementdomain.ConsumeResult, error) {
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		return nil, entitlementdomain.ErrInvalidWorkspace
	}

	kind := ledgerdomain.Kind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	if !kind.Valid() {
		return nil, entitlementdomain.ErrInvalidKind
	}

	if req.Amount <= 0 {
		return nil, entitlementdomain.ErrInvalidAmount
	}

	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		ref = correlation.ExtractCorrelationID(ctx)
	}

	var result *entitlementdomain.ConsumeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock serializes all consume and grant attempts per
		// workspace; available is therefore computed against committed
		// state and cannot be over-read by a concurrent caller.
		balance, err := s.workspaceRepo.FindForUpdate(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if balance == nil {
			return entitlementdomain.ErrWorkspaceMissing
		}

		allowance := s.plans.Current().Allowance(balance.Plan)

		switch kind {
		case ledgerdomain.KindAI:
			result, err = s.consumeAI(ctx, tx, balance, allowance, req.Amount, ref)
		case ledgerdomain.KindEmail:
			result, err = s.consumeEmail(ctx, tx, balance, allowance, req.Amount, ref)
		}
		return err
	})
	if err != nil {
		if ee, ok := entitlementdomain.AsEntitlementError(err); ok {
			s.obsMetrics.RecordEntitlementDenied(ctx, string(ee.Kind))
		}
		return nil, err
	}

	s.obsMetrics.RecordConsumption(ctx, string(kind), req.Amount)
	return result, nil
}

// consumeAI draws from the purchased token balance first, then from the
// monthly plan allowance. Plan usage is derived from the ledger: the sum
// of negative ai.* entries since period start. The plan-portion entry is
// balance-neutral; it exists only so that sum stays accurate, which makes
// period rollover free of any reset bookkeeping.
func (s *Service) consumeAI(ctx context.Context, tx *gorm.DB, balance *workspacedomain.Balance, allowance plan.Allowance, amount int64, ref string) (*entitlementdomain.ConsumeResult, error) {
	used, err := s.ledgerRepo.SumConsumedSince(ctx, tx, balance.WorkspaceID, ledgerdomain.KindAI, ledgerdomain.KindAI.ReasonPrefix(), balance.PeriodStart)
	if err != nil {
		return nil, err
	}

	remainingPlan := allowance.AITokensMonthly - used
	if remainingPlan < 0 {
		remainingPlan = 0
	}

	available := balance.AITokens + remainingPlan
	if available < amount {
		return nil, &entitlementdomain.EntitlementError{Kind: ledgerdomain.KindAI, Needed: amount - available}
	}

	now := s.clock.Now()
	stored := balance.AITokens

	fromBalance := min64(balance.AITokens, amount)
	if fromBalance > 0 {
		stored = balance.AITokens - fromBalance
		if err := s.workspaceRepo.UpdateAITokens(ctx, tx, balance.WorkspaceID, stored, now); err != nil {
			return nil, err
		}
		if err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.Entry{
			ID:           s.genID.Generate(),
			WorkspaceID:  balance.WorkspaceID,
			Kind:         ledgerdomain.KindAI,
			Delta:        -fromBalance,
			Reason:       ledgerdomain.ReasonAIConsumeBalance,
			Ref:          ref,
			BalanceAfter: stored,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	fromPlan := amount - fromBalance
	if fromPlan > 0 {
		if err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.Entry{
			ID:           s.genID.Generate(),
			WorkspaceID:  balance.WorkspaceID,
			Kind:         ledgerdomain.KindAI,
			Delta:        -fromPlan,
			Reason:       ledgerdomain.ReasonAIConsumePlan,
			Ref:          ref,
			BalanceAfter: stored,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	// Every ai.* entry counts against the window, the balance draw
	// included, so the reported remainder mirrors the derivation the
	// next check will run.
	planRemaining := remainingPlan - amount
	if planRemaining < 0 {
		planRemaining = 0
	}

	return &entitlementdomain.ConsumeResult{
		WorkspaceID:   balance.WorkspaceID,
		Kind:          ledgerdomain.KindAI,
		Amount:        amount,
		FromBalance:   fromBalance,
		FromPlan:      fromPlan,
		BalanceAfter:  stored,
		PlanRemaining: planRemaining,
	}, nil
}

// consumeEmail mirrors consumeAI but the plan-remaining quantity is the
// daily counter, not a ledger sum. The within-cap portion increments
// email_daily_used directly and writes no ledger entry; only the
// purchased-balance portion is journaled.
func (s *Service) consumeEmail(ctx context.Context, tx *gorm.DB, balance *workspacedomain.Balance, allowance plan.Allowance, amount int64, ref string) (*entitlementdomain.ConsumeResult, error) {
	remainingDaily := allowance.EmailSendsDaily - balance.EmailDailyUsed
	if remainingDaily < 0 {
		remainingDaily = 0
	}

	available := balance.EmailCredits + remainingDaily
	if available < amount {
		return nil, &entitlementdomain.EntitlementError{Kind: ledgerdomain.KindEmail, Needed: amount - available}
	}

	now := s.clock.Now()
	stored := balance.EmailCredits

	fromBalance := min64(balance.EmailCredits, amount)
	if fromBalance > 0 {
		stored = balance.EmailCredits - fromBalance
		if err := s.workspaceRepo.UpdateEmailCredits(ctx, tx, balance.WorkspaceID, stored, now); err != nil {
			return nil, err
		}
		if err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.Entry{
			ID:           s.genID.Generate(),
			WorkspaceID:  balance.WorkspaceID,
			Kind:         ledgerdomain.KindEmail,
			Delta:        -fromBalance,
			Reason:       ledgerdomain.ReasonEmailConsumeBalance,
			Ref:          ref,
			BalanceAfter: stored,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	fromPlan := amount - fromBalance
	if fromPlan > 0 {
		if err := s.workspaceRepo.UpdateEmailDailyUsed(ctx, tx, balance.WorkspaceID, balance.EmailDailyUsed+fromPlan, now); err != nil {
			return nil, err
		}
	}

	return &entitlementdomain.ConsumeResult{
		WorkspaceID:   balance.WorkspaceID,
		Kind:          ledgerdomain.KindEmail,
		Amount:        amount,
		FromBalance:   fromBalance,
		FromPlan:      fromPlan,
		BalanceAfter:  stored,
		PlanRemaining: remainingDaily - fromPlan,
	}, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

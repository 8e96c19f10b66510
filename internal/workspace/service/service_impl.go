package service

import (
	"context"
	"strings"
	"time"

	"github.com/creatorhq/creditd/internal/clock"
	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	"github.com/creatorhq/creditd/internal/plan"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	"github.com/creatorhq/creditd/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Plans      *plan.CatalogHolder
	Repo       workspacedomain.Repository
	LedgerRepo ledgerdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	plans      *plan.CatalogHolder
	repo       workspacedomain.Repository
	ledgerRepo ledgerdomain.Repository
}

func NewService(p Params) workspacedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("workspace.service"),
		clock:      p.Clock,
		plans:      p.Plans,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
	}
}

func (s *Service) Provision(ctx context.Context, req workspacedomain.ProvisionRequest) (*workspacedomain.Overview, error) {
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		return nil, workspacedomain.ErrInvalidWorkspace
	}

	now := s.clock.Now()
	balance := &workspacedomain.Balance{
		WorkspaceID: workspaceID,
		Plan:        plan.ParseTier(req.Plan),
		PeriodStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, balance); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, workspacedomain.ErrAlreadyExists
		}
		return nil, err
	}

	s.log.Info("workspace provisioned",
		zap.String("workspace_id", workspaceID),
		zap.String("plan", string(balance.Plan)),
	)

	return s.overview(ctx, balance)
}

func (s *Service) Overview(ctx context.Context, workspaceID string) (*workspacedomain.Overview, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, workspacedomain.ErrInvalidWorkspace
	}

	balance, err := s.repo.Find(ctx, s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, workspacedomain.ErrNotFound
	}

	return s.overview(ctx, balance)
}

func (s *Service) ChangePlan(ctx context.Context, workspaceID string, tier plan.Tier) (*workspacedomain.Overview, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, workspacedomain.ErrInvalidWorkspace
	}

	var updated *workspacedomain.Balance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.repo.FindForUpdate(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if balance == nil {
			return workspacedomain.ErrNotFound
		}

		now := s.clock.Now()
		if err := s.repo.UpdatePlan(ctx, tx, workspaceID, tier, now); err != nil {
			return err
		}

		balance.Plan = tier
		balance.UpdatedAt = now
		updated = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("workspace plan changed",
		zap.String("workspace_id", workspaceID),
		zap.String("plan", string(tier)),
	)

	return s.overview(ctx, updated)
}

// AdvancePeriod needs no credit bookkeeping: plan consumption is derived
// from ledger entries at or after period_start, so moving the boundary
// forward is by itself a full allowance reset. The daily email counter is
// zeroed alongside since a new period always starts a new day.
func (s *Service) AdvancePeriod(ctx context.Context, workspaceID string, at time.Time) error {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return workspacedomain.ErrInvalidWorkspace
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.repo.FindForUpdate(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if balance == nil {
			return workspacedomain.ErrNotFound
		}
		return s.repo.UpdatePeriodStart(ctx, tx, workspaceID, at, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.log.Info("workspace period advanced",
		zap.String("workspace_id", workspaceID),
		zap.Time("period_start", at),
	)
	return nil
}

func (s *Service) ResetDaily(ctx context.Context, workspaceID string) error {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return workspacedomain.ErrInvalidWorkspace
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.repo.FindForUpdate(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if balance == nil {
			return workspacedomain.ErrNotFound
		}
		return s.repo.UpdateEmailDailyUsed(ctx, tx, workspaceID, 0, s.clock.Now())
	})
}

func (s *Service) overview(ctx context.Context, balance *workspacedomain.Balance) (*workspacedomain.Overview, error) {
	allowance := s.plans.Current().Allowance(balance.Plan)

	aiUsed, err := s.ledgerRepo.SumConsumedSince(ctx, s.db, balance.WorkspaceID, ledgerdomain.KindAI, ledgerdomain.KindAI.ReasonPrefix(), balance.PeriodStart)
	if err != nil {
		return nil, err
	}

	aiPlanRemaining := allowance.AITokensMonthly - aiUsed
	if aiPlanRemaining < 0 {
		aiPlanRemaining = 0
	}

	emailDailyRemaining := allowance.EmailSendsDaily - balance.EmailDailyUsed
	if emailDailyRemaining < 0 {
		emailDailyRemaining = 0
	}

	return &workspacedomain.Overview{
		WorkspaceID:         balance.WorkspaceID,
		Plan:                balance.Plan,
		PeriodStart:         balance.PeriodStart,
		AITokensBalance:     balance.AITokens,
		AIUsedThisPeriod:    aiUsed,
		AIPlanRemaining:     aiPlanRemaining,
		EmailBalance:        balance.EmailCredits,
		EmailDailyUsed:      balance.EmailDailyUsed,
		EmailDailyRemaining: emailDailyRemaining,
	}, nil
}

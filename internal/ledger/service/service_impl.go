package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/creatorhq/creditd/internal/clock"
	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	obsmetrics "github.com/creatorhq/creditd/internal/observability/metrics"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	"github.com/creatorhq/creditd/pkg/db/pagination"
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
	Repo          ledgerdomain.Repository
	WorkspaceRepo workspacedomain.Repository
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          ledgerdomain.Repository
	workspaceRepo workspacedomain.Repository
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("ledger.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		workspaceRepo: p.WorkspaceRepo,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) Grant(ctx context.Context, req ledgerdomain.GrantRequest) (*ledgerdomain.GrantResponse, error) {
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		return nil, ledgerdomain.ErrInvalidWorkspace
	}

	kind := ledgerdomain.Kind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	if !kind.Valid() {
		return nil, ledgerdomain.ErrInvalidKind
	}

	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = ledgerdomain.ReasonTopupPurchase
	}
	if ledgerdomain.IsPlanAccountingReason(reason) {
		return nil, ledgerdomain.ErrInvalidReason
	}

	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		ref = correlation.ExtractCorrelationID(ctx)
	}

	var resp *ledgerdomain.GrantResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.workspaceRepo.FindForUpdate(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if balance == nil {
			return ledgerdomain.ErrWorkspaceMissing
		}

		now := s.clock.Now()
		var newBalance int64
		switch kind {
		case ledgerdomain.KindAI:
			newBalance = balance.AITokens + req.Amount
			if err := s.workspaceRepo.UpdateAITokens(ctx, tx, workspaceID, newBalance, now); err != nil {
				return err
			}
		case ledgerdomain.KindEmail:
			newBalance = balance.EmailCredits + req.Amount
			if err := s.workspaceRepo.UpdateEmailCredits(ctx, tx, workspaceID, newBalance, now); err != nil {
				return err
			}
		}

		entry := &ledgerdomain.Entry{
			ID:           s.genID.Generate(),
			WorkspaceID:  workspaceID,
			Kind:         kind,
			Delta:        req.Amount,
			Reason:       reason,
			Ref:          ref,
			BalanceAfter: newBalance,
			CreatedAt:    now,
		}
		if err := s.repo.Append(ctx, tx, entry); err != nil {
			return err
		}

		resp = &ledgerdomain.GrantResponse{
			EntryID:      entry.ID.String(),
			WorkspaceID:  workspaceID,
			Kind:         kind,
			Amount:       req.Amount,
			BalanceAfter: newBalance,
			CreatedAt:    now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordGrant(ctx, string(kind), reason)
	s.log.Info("credit granted",
		zap.String("workspace_id", workspaceID),
		zap.String("kind", string(kind)),
		zap.Int64("amount", req.Amount),
		zap.String("reason", reason),
	)
	return resp, nil
}

func (s *Service) Entries(ctx context.Context, req ledgerdomain.ListRequest) (*ledgerdomain.ListResponse, error) {
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		return nil, ledgerdomain.ErrInvalidWorkspace
	}

	var kind ledgerdomain.Kind
	if raw := strings.TrimSpace(req.Kind); raw != "" {
		kind = ledgerdomain.Kind(strings.ToUpper(raw))
		if !kind.Valid() {
			return nil, ledgerdomain.ErrInvalidKind
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 50
	}

	var afterID snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, ledgerdomain.ErrInvalidPageToken
		}
		afterID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, ledgerdomain.ErrInvalidPageToken
		}
	}

	entries, err := s.repo.List(ctx, s.db, ledgerdomain.ListQuery{
		WorkspaceID: workspaceID,
		Kind:        kind,
		Since:       req.Since,
		AfterID:     afterID,
		Limit:       pageSize + 1,
	})
	if err != nil {
		return nil, err
	}

	hasMore := len(entries) > pageSize
	if hasMore {
		entries = entries[:pageSize]
	}

	resp := &ledgerdomain.ListResponse{
		Entries: make([]ledgerdomain.EntryResponse, 0, len(entries)),
		HasMore: hasMore,
	}
	for i := range entries {
		e := &entries[i]
		resp.Entries = append(resp.Entries, ledgerdomain.EntryResponse{
			ID:           e.ID.String(),
			WorkspaceID:  e.WorkspaceID,
			Kind:         e.Kind,
			Delta:        e.Delta,
			Reason:       e.Reason,
			Ref:          e.Ref,
			BalanceAfter: e.BalanceAfter,
			CreatedAt:    e.CreatedAt,
		})
	}
	if hasMore && len(entries) > 0 {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: entries[len(entries)-1].ID.String()})
		if err != nil {
			return nil, err
		}
		resp.NextPageToken = token
	}

	return resp, nil
}

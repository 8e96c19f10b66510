package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/creatorhq/creditd/internal/clock"
	"github.com/creatorhq/creditd/internal/config"
	idempotencydomain "github.com/creatorhq/creditd/internal/idempotency/domain"
	obsmetrics "github.com/creatorhq/creditd/internal/observability/metrics"
	"github.com/creatorhq/creditd/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	mode       string
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) idempotencydomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("idempotency.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		mode:       p.Config.IdempotencyMode,
		obsMetrics: p.ObsMetrics,
	}
}

// Guard claims (key, path) by inserting it. A duplicate-key collision is
// the only signal for a replay; any other insert failure is a store
// problem and is resolved by mode: enforce fails closed, warn logs and
// admits, off admits silently.
func (s *Service) Guard(ctx context.Context, key, path, workspaceID string) error {
	if s.mode == config.IdempotencyOff || key == "" {
		return nil
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO idempotency_keys (id, idem_key, path, workspace_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.genID.Generate().Int64(),
		key,
		path,
		workspaceID,
		s.clock.Now(),
	).Error
	if err == nil {
		return nil
	}

	if db.IsDuplicateKeyErr(err) {
		s.obsMetrics.RecordIdempotentReplay(ctx, path)
		return &idempotencydomain.DuplicateError{Key: key, Path: path}
	}

	if s.mode == config.IdempotencyWarn {
		s.log.Warn("idempotency store unavailable, admitting request",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}

	s.log.Error("idempotency store unavailable, rejecting request",
		zap.String("path", path),
		zap.Error(err),
	)
	return idempotencydomain.ErrUnavailable
}

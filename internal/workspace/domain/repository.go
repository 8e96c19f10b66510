package domain

import (
	"context"
	"time"

	"github.com/creatorhq/creditd/internal/plan"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, balance *Balance) error
	Find(ctx context.Context, db *gorm.DB, workspaceID string) (*Balance, error)
	// FindForUpdate locks the balance row for the lifetime of tx; all
	// concurrent consume/grant attempts on the same workspace serialize
	// behind this lock.
	FindForUpdate(ctx context.Context, tx *gorm.DB, workspaceID string) (*Balance, error)
	UpdateAITokens(ctx context.Context, tx *gorm.DB, workspaceID string, balance int64, now time.Time) error
	UpdateEmailCredits(ctx context.Context, tx *gorm.DB, workspaceID string, balance int64, now time.Time) error
	UpdateEmailDailyUsed(ctx context.Context, tx *gorm.DB, workspaceID string, used int64, now time.Time) error
	UpdatePlan(ctx context.Context, tx *gorm.DB, workspaceID string, tier plan.Tier, now time.Time) error
	UpdatePeriodStart(ctx context.Context, tx *gorm.DB, workspaceID string, periodStart time.Time, now time.Time) error
}

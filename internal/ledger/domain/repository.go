package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListQuery filters a ledger listing. AfterID pages by entry id,
// exploiting snowflake creation ordering.
type ListQuery struct {
	WorkspaceID string
	Kind        Kind
	Since       time.Time
	AfterID     snowflake.ID
	Limit       int
}

type Repository interface {
	// Append inserts a new entry. Entries are never updated, merged or
	// deleted; deduplication belongs to the idempotency gate above.
	Append(ctx context.Context, db *gorm.DB, entry *Entry) error
	// SumConsumedSince returns the absolute sum of negative deltas for
	// entries matching workspace, kind and reason prefix created at or
	// after since.
	SumConsumedSince(ctx context.Context, db *gorm.DB, workspaceID string, kind Kind, reasonPrefix string, since time.Time) (int64, error)
	List(ctx context.Context, db *gorm.DB, q ListQuery) ([]Entry, error)
	// LastBalanceEntry returns the most recent balance-affecting entry
	// (plan-accounting entries excluded) for a workspace and kind.
	LastBalanceEntry(ctx context.Context, db *gorm.DB, workspaceID string, kind Kind) (*Entry, error)
}

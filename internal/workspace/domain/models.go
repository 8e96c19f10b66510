// Package domain contains the per-tenant balance aggregate. The balance
// row stores purchased credit only; plan allowance is always derived from
// the ledger (AI) or the daily counter (email), never persisted.
package domain

import (
	"time"

	"github.com/creatorhq/creditd/internal/plan"
)

// Balance is the single mutable row per workspace. It is written only by
// the entitlement consume path and the ledger grant path, always inside a
// transaction that also writes the matching ledger entry.
type Balance struct {
	WorkspaceID    string    `gorm:"column:workspace_id;primaryKey;type:text"`
	Plan           plan.Tier `gorm:"type:text;not null"`
	PeriodStart    time.Time `gorm:"not null"`
	AITokens       int64     `gorm:"column:ai_tokens_balance;not null;default:0"`
	EmailCredits   int64     `gorm:"column:email_balance;not null;default:0"`
	EmailDailyUsed int64     `gorm:"column:email_daily_used;not null;default:0"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "workspace_balances" }

package repository

import (
	"context"
	"time"

	"github.com/creatorhq/creditd/internal/plan"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() workspacedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, b *workspacedomain.Balance) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO workspace_balances (workspace_id, plan, period_start, ai_tokens_balance, email_balance, email_daily_used, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.WorkspaceID,
		b.Plan,
		b.PeriodStart,
		b.AITokens,
		b.EmailCredits,
		b.EmailDailyUsed,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, workspaceID string) (*workspacedomain.Balance, error) {
	var balance workspacedomain.Balance
	err := db.WithContext(ctx).Raw(
		`SELECT workspace_id, plan, period_start, ai_tokens_balance, email_balance, email_daily_used, created_at, updated_at
		 FROM workspace_balances WHERE workspace_id = ?`,
		workspaceID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.WorkspaceID == "" {
		return nil, nil
	}
	return &balance, nil
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, workspaceID string) (*workspacedomain.Balance, error) {
	var balance workspacedomain.Balance
	err := tx.WithContext(ctx).Raw(
		`SELECT workspace_id, plan, period_start, ai_tokens_balance, email_balance, email_daily_used, created_at, updated_at
		 FROM workspace_balances
		 WHERE workspace_id = ?
		 FOR UPDATE`,
		workspaceID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.WorkspaceID == "" {
		return nil, nil
	}
	return &balance, nil
}

func (r *repo) UpdateAITokens(ctx context.Context, tx *gorm.DB, workspaceID string, balance int64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE workspace_balances SET ai_tokens_balance = ?, updated_at = ? WHERE workspace_id = ?`,
		balance,
		now,
		workspaceID,
	).Error
}

func (r *repo) UpdateEmailCredits(ctx context.Context, tx *gorm.DB, workspaceID string, balance int64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE workspace_balances SET email_balance = ?, updated_at = ? WHERE workspace_id = ?`,
		balance,
		now,
		workspaceID,
	).Error
}

func (r *repo) UpdateEmailDailyUsed(ctx context.Context, tx *gorm.DB, workspaceID string, used int64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE workspace_balances SET email_daily_used = ?, updated_at = ? WHERE workspace_id = ?`,
		used,
		now,
		workspaceID,
	).Error
}

func (r *repo) UpdatePlan(ctx context.Context, tx *gorm.DB, workspaceID string, tier plan.Tier, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE workspace_balances SET plan = ?, updated_at = ? WHERE workspace_id = ?`,
		tier,
		now,
		workspaceID,
	).Error
}

func (r *repo) UpdatePeriodStart(ctx context.Context, tx *gorm.DB, workspaceID string, periodStart time.Time, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE workspace_balances SET period_start = ?, email_daily_used = 0, updated_at = ? WHERE workspace_id = ?`,
		periodStart,
		now,
		workspaceID,
	).Error
}

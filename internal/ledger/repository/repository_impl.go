package repository

import (
	"context"
	"time"

	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, e *ledgerdomain.Entry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (id, workspace_id, kind, delta, reason, ref, balance_after, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.WorkspaceID,
		e.Kind,
		e.Delta,
		e.Reason,
		e.Ref,
		e.BalanceAfter,
		e.Metadata,
		e.CreatedAt,
	).Error
}

func (r *repo) SumConsumedSince(ctx context.Context, db *gorm.DB, workspaceID string, kind ledgerdomain.Kind, reasonPrefix string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(-delta), 0)
		 FROM ledger_entries
		 WHERE workspace_id = ? AND kind = ? AND delta < 0 AND reason LIKE ? AND created_at >= ?`,
		workspaceID,
		kind,
		reasonPrefix+"%",
		since,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, q ledgerdomain.ListQuery) ([]ledgerdomain.Entry, error) {
	query := db.WithContext(ctx).
		Table("ledger_entries").
		Where("workspace_id = ?", q.WorkspaceID).
		Order("id DESC")

	if q.Kind != "" {
		query = query.Where("kind = ?", q.Kind)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since)
	}
	if q.AfterID != 0 {
		query = query.Where("id < ?", q.AfterID)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var entries []ledgerdomain.Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) LastBalanceEntry(ctx context.Context, db *gorm.DB, workspaceID string, kind ledgerdomain.Kind) (*ledgerdomain.Entry, error) {
	var entry ledgerdomain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT id, workspace_id, kind, delta, reason, ref, balance_after, metadata, created_at
		 FROM ledger_entries
		 WHERE workspace_id = ? AND kind = ? AND reason NOT LIKE '%.consume.plan'
		 ORDER BY id DESC
		 LIMIT 1`,
		workspaceID,
		kind,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

package domain

import "time"

// Record marks one accepted mutating request. The unique index over
// (key, path) is the whole mechanism: the first insert wins and every
// later insert with the same pair collides at the database, regardless
// of which process handles it.
type Record struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false"`
	Key         string    `gorm:"column:idem_key;uniqueIndex:ux_idempotency_key_path;type:text;not null"`
	Path        string    `gorm:"uniqueIndex:ux_idempotency_key_path;type:text;not null"`
	WorkspaceID string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "idempotency_keys" }

// Package domain contains the append-only credit ledger models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind selects which workspace balance an entry affects.
type Kind string

const (
	KindAI    Kind = "AI"
	KindEmail Kind = "EMAIL"
)

// Reason tags identifying the causal operation. Entries whose reason ends
// in ".consume.plan" are plan-accounting only: they feed the period-window
// sum and intentionally do not move the stored balance.
const (
	ReasonAIConsumeBalance    = "ai.consume.balance"
	ReasonAIConsumePlan       = "ai.consume.plan"
	ReasonEmailConsumeBalance = "email.consume.balance"
	ReasonTopupPurchase       = "topup.purchase"
	ReasonGrantPromo          = "grant.promo"
	ReasonRefund              = "refund"
)

// ReasonPrefix returns the consume-reason prefix used for plan-window
// accounting of a kind ("ai." or "email.").
func (k Kind) ReasonPrefix() string {
	if k == KindEmail {
		return "email."
	}
	return "ai."
}

// Valid reports whether the kind is a known resource kind.
func (k Kind) Valid() bool {
	return k == KindAI || k == KindEmail
}

// IsPlanAccountingReason reports whether a reason follows the
// plan-accounting convention and therefore never alters the stored balance.
func IsPlanAccountingReason(reason string) bool {
	return len(reason) > len(".consume.plan") &&
		reason[len(reason)-len(".consume.plan"):] == ".consume.plan"
}

// Entry is an immutable journal record. Negative delta is consumption,
// positive is grant/top-up/refund. BalanceAfter snapshots the stored
// balance at write time so audits never need a full replay.
type Entry struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	WorkspaceID  string            `gorm:"type:text;not null;index:ix_ledger_entries_ws_kind_created,priority:1"`
	Kind         Kind              `gorm:"type:text;not null;index:ix_ledger_entries_ws_kind_created,priority:2"`
	Delta        int64             `gorm:"not null"`
	Reason       string            `gorm:"type:text;not null"`
	Ref          string            `gorm:"type:text"`
	BalanceAfter int64             `gorm:"not null"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null;index:ix_ledger_entries_ws_kind_created,priority:3"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "ledger_entries" }

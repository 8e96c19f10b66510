package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Grant records a positive delta and updates the corresponding
	// workspace balance field in the same transaction. Used by top-up
	// purchase fulfillment and promotional credit.
	Grant(ctx context.Context, req GrantRequest) (*GrantResponse, error)
	Entries(ctx context.Context, req ListRequest) (*ListResponse, error)
}

type GrantRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
	Ref         string `json:"ref"`
}

type GrantResponse struct {
	EntryID      string    `json:"entry_id"`
	WorkspaceID  string    `json:"workspace_id"`
	Kind         Kind      `json:"kind"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListRequest struct {
	WorkspaceID string
	Kind        string
	Since       time.Time
	PageToken   string
	PageSize    int
}

type EntryResponse struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	Kind         Kind      `json:"kind"`
	Delta        int64     `json:"delta"`
	Reason       string    `json:"reason"`
	Ref          string    `json:"ref,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListResponse struct {
	Entries       []EntryResponse `json:"entries"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	HasMore       bool            `json:"has_more"`
}

var (
	ErrInvalidWorkspace = errors.New("invalid_workspace")
	ErrInvalidKind      = errors.New("invalid_kind")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidReason    = errors.New("invalid_reason")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrWorkspaceMissing = errors.New("workspace_not_found")
)

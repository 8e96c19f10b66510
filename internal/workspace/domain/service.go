package domain

import (
	"context"
	"errors"
	"time"

	"github.com/creatorhq/creditd/internal/plan"
)

type Service interface {
	Provision(ctx context.Context, req ProvisionRequest) (*Overview, error)
	Overview(ctx context.Context, workspaceID string) (*Overview, error)
	ChangePlan(ctx context.Context, workspaceID string, tier plan.Tier) (*Overview, error)
	// AdvancePeriod moves the billing window forward; invoked by the
	// external billing-cycle scheduler on subscription renewal.
	AdvancePeriod(ctx context.Context, workspaceID string, at time.Time) error
	// ResetDaily zeroes the email day counter; invoked at day rollover.
	ResetDaily(ctx context.Context, workspaceID string) error
}

type ProvisionRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Plan        string `json:"plan"`
}

type Overview struct {
	WorkspaceID         string    `json:"workspace_id"`
	Plan                plan.Tier `json:"plan"`
	PeriodStart         time.Time `json:"period_start"`
	AITokensBalance     int64     `json:"ai_tokens_balance"`
	AIUsedThisPeriod    int64     `json:"ai_used_this_period"`
	AIPlanRemaining     int64     `json:"ai_plan_remaining"`
	EmailBalance        int64     `json:"email_balance"`
	EmailDailyUsed      int64     `json:"email_daily_used"`
	EmailDailyRemaining int64     `json:"email_daily_remaining"`
}

var (
	ErrInvalidWorkspace = errors.New("invalid_workspace")
	ErrNotFound         = errors.New("not_found")
	ErrAlreadyExists    = errors.New("workspace_exists")
)

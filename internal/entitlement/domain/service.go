// Package domain defines the entitlement check-and-consume contract and
// its typed business error.
package domain

import (
	"context"
	"errors"
	"fmt"

	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
)

type Service interface {
	// CheckAndConsume reserves amount units of a resource kind for a
	// workspace, drawing from purchased balance first and the current
	// plan allowance second, atomically and at most once per call.
	CheckAndConsume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error)
}

type ConsumeRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	Ref         string `json:"ref"`
}

type ConsumeResult struct {
	WorkspaceID   string            `json:"workspace_id"`
	Kind          ledgerdomain.Kind `json:"kind"`
	Amount        int64             `json:"amount"`
	FromBalance   int64             `json:"from_balance"`
	FromPlan      int64             `json:"from_plan"`
	BalanceAfter  int64             `json:"balance_after"`
	PlanRemaining int64             `json:"plan_remaining"`
}

// EntitlementError is the business-rule rejection: the workspace cannot
// afford the requested consumption. Needed is the shortfall the caller
// should prompt the customer to top up. Every other failure out of this
// package is infrastructure and propagates unchanged.
type EntitlementError struct {
	Kind   ledgerdomain.Kind
	Needed int64
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("entitlement_exceeded: kind=%s needed=%d", e.Kind, e.Needed)
}

// AsEntitlementError unwraps err as an EntitlementError, if it is one.
func AsEntitlementError(err error) (*EntitlementError, bool) {
	var ee *EntitlementError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

var (
	ErrInvalidWorkspace = errors.New("invalid_workspace")
	ErrInvalidKind      = errors.New("invalid_kind")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrWorkspaceMissing = errors.New("workspace_not_found")
)

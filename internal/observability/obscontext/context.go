// Package obscontext carries request-scoped identifiers used by logging
// and tracing.
package obscontext

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type workspaceIDKey struct{}

// WithRequestID attaches the request identifier to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request identifier, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithWorkspaceID attaches the tenant workspace identifier to the context.
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceIDKey{}, workspaceID)
}

// WorkspaceIDFromContext returns the tenant workspace identifier, if any.
func WorkspaceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(workspaceIDKey{}).(string); ok {
		return v
	}
	return ""
}

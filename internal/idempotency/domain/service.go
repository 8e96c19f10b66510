package domain

import (
	"context"
	"errors"
	"fmt"
)

// Service gates mutating endpoints on a client-supplied idempotency key.
// Guard must be called before the guarded operation runs: a DuplicateError
// return means the pair was seen before and the operation must not execute.
type Service interface {
	Guard(ctx context.Context, key, path, workspaceID string) error
}

// DuplicateError reports a replayed (key, path) pair.
type DuplicateError struct {
	Key  string
	Path string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("idempotency: duplicate request for key %q on %s", e.Key, e.Path)
}

// AsDuplicateError unwraps err into a DuplicateError if it is one.
func AsDuplicateError(err error) (*DuplicateError, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ErrUnavailable is returned in enforce mode when the gate cannot reach
// its store and therefore cannot prove the request is fresh.
var ErrUnavailable = errors.New("idempotency_unavailable")

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/creatorhq/creditd/internal/clock"
	"github.com/creatorhq/creditd/internal/config"
	idempotencydomain "github.com/creatorhq/creditd/internal/idempotency/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, mode string) idempotencydomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&idempotencydomain.Record{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Config: config.Config{IdempotencyMode: mode},
	})
}

func TestGuardFirstUseSucceeds(t *testing.T) {
	svc := newTestService(t, config.IdempotencyEnforce)
	ctx := context.Background()

	require.NoError(t, svc.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1"))
}

func TestGuardRejectsReplay(t *testing.T) {
	svc := newTestService(t, config.IdempotencyEnforce)
	ctx := context.Background()

	require.NoError(t, svc.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1"))

	err := svc.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1")
	require.Error(t, err)

	de, ok := idempotencydomain.AsDuplicateError(err)
	require.True(t, ok)
	assert.Equal(t, "key-1", de.Key)
}

func TestGuardScopesKeyByPath(t *testing.T) {
	svc := newTestService(t, config.IdempotencyEnforce)
	ctx := context.Background()

	// Same key on different endpoints is two distinct claims.
	require.NoError(t, svc.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1"))
	require.NoError(t, svc.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/grants", "ws_1"))
}

func TestGuardOffModeSkipsStore(t *testing.T) {
	svc := newTestService(t, config.IdempotencyOff)
	ctx := context.Background()

	require.NoError(t, svc.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1"))
	require.NoError(t, svc.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1"))
}

func TestGuardEmptyKeyAdmits(t *testing.T) {
	svc := newTestService(t, config.IdempotencyEnforce)

	// The HTTP layer decides what a missing key means; the gate itself
	// only claims non-empty keys.
	require.NoError(t, svc.Guard(context.Background(), "", "/v1/workspaces/:workspace_id/consume", "ws_1"))
}

func TestGuardConcurrentClaimsExactlyOnce(t *testing.T) {
	svc := newTestService(t, config.IdempotencyEnforce)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			errs[slot] = svc.Guard(ctx, "key-race", "/v1/workspaces/:workspace_id/consume", "ws_1")
		}(i)
	}
	wg.Wait()

	var admitted, replayed int
	for _, err := range errs {
		if err == nil {
			admitted++
			continue
		}
		_, ok := idempotencydomain.AsDuplicateError(err)
		require.True(t, ok, "unexpected error: %v", err)
		replayed++
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, attempts-1, replayed)
}

func TestGuardStoreFailureByMode(t *testing.T) {
	// Drop the table to simulate an unreachable store.
	makeBroken := func(t *testing.T, mode string) idempotencydomain.Service {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
		require.NoError(t, err)
		node, err := snowflake.NewNode(1)
		require.NoError(t, err)
		return NewService(Params{
			DB:     db,
			Log:    zap.NewNop(),
			GenID:  node,
			Clock:  clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
			Config: config.Config{IdempotencyMode: mode},
		})
	}

	ctx := context.Background()

	enforce := makeBroken(t, config.IdempotencyEnforce)
	assert.ErrorIs(t, enforce.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1"), idempotencydomain.ErrUnavailable)

	warn := makeBroken(t, config.IdempotencyWarn)
	assert.NoError(t, warn.Guard(ctx, "key-1", "/v1/workspaces/:workspace_id/consume", "ws_1"))
}

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/creatorhq/creditd/internal/clock"
	"github.com/creatorhq/creditd/internal/config"
	entitlementservice "github.com/creatorhq/creditd/internal/entitlement/service"
	idempotencydomain "github.com/creatorhq/creditd/internal/idempotency/domain"
	idempotencyservice "github.com/creatorhq/creditd/internal/idempotency/service"
	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	ledgerrepository "github.com/creatorhq/creditd/internal/ledger/repository"
	ledgerservice "github.com/creatorhq/creditd/internal/ledger/service"
	"github.com/creatorhq/creditd/internal/plan"
	"github.com/creatorhq/creditd/internal/server"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	workspacerepository "github.com/creatorhq/creditd/internal/workspace/repository"
	workspaceservice "github.com/creatorhq/creditd/internal/workspace/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// The whole stack minus redis and postgres: real services, real
// repositories, gin routing, sqlite storage.
type env struct {
	engine *gin.Engine
	clk    *clock.FakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&workspacedomain.Balance{},
		&ledgerdomain.Entry{},
		&idempotencydomain.Record{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	plans := plan.NewStaticCatalogHolder(plan.DefaultCatalog())
	cfg := config.Config{IdempotencyMode: config.IdempotencyEnforce}

	wsRepo := workspacerepository.Provide()
	ledgRepo := ledgerrepository.Provide()

	workspaceSvc := workspaceservice.NewService(workspaceservice.Params{
		DB: db, Log: log, Clock: clk, Plans: plans, Repo: wsRepo, LedgerRepo: ledgRepo,
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: ledgRepo, WorkspaceRepo: wsRepo,
	})
	entitlementSvc := entitlementservice.NewService(entitlementservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Plans: plans,
		LedgerRepo: ledgRepo, WorkspaceRepo: wsRepo,
	})
	idempotencySvc := idempotencyservice.NewService(idempotencyservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg,
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())

	server.NewServer(server.ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		WorkspaceSvc:   workspaceSvc,
		LedgerSvc:      ledgerSvc,
		EntitlementSvc: entitlementSvc,
		IdempotencySvc: idempotencySvc,
	})

	return &env{engine: engine, clk: clk}
}

func (e *env) do(t *testing.T, method, path string, body any, idemKey string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func TestCreditLifecycle(t *testing.T) {
	e := newEnv(t)

	// Provision a FREE workspace.
	rec := e.do(t, http.MethodPost, "/v1/workspaces", gin.H{"workspace_id": "ws_1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	// Top up 1000 AI tokens.
	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/grants",
		gin.H{"kind": "AI", "amount": 1000, "reason": "topup.purchase", "ref": "stripe_evt_1"}, "grant-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	// Consume 1500: 1000 from balance, 500 from the plan allowance.
	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "AI", "amount": 1500}, "consume-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var consume struct {
		FromBalance  int64 `json:"from_balance"`
		FromPlan     int64 `json:"from_plan"`
		BalanceAfter int64 `json:"balance_after"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &consume))
	assert.Equal(t, int64(1000), consume.FromBalance)
	assert.Equal(t, int64(500), consume.FromPlan)
	assert.Equal(t, int64(0), consume.BalanceAfter)

	// Replaying the same idempotency key must not consume again.
	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "AI", "amount": 1500}, "consume-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Overview reflects the consumption and the derived allowance.
	rec = e.do(t, http.MethodGet, "/v1/workspaces/ws_1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var overview workspacedomain.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, int64(0), overview.AITokensBalance)
	assert.Equal(t, int64(1500), overview.AIUsedThisPeriod)
	assert.Equal(t, int64(98_500), overview.AIPlanRemaining)

	// The ledger shows the grant plus the split consumption.
	rec = e.do(t, http.MethodGet, "/v1/workspaces/ws_1/ledger", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list ledgerdomain.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Entries, 3)
	assert.Equal(t, "ai.consume.plan", list.Entries[0].Reason)
	assert.Equal(t, "ai.consume.balance", list.Entries[1].Reason)
	assert.Equal(t, "topup.purchase", list.Entries[2].Reason)
}

func TestExhaustionAndPeriodRollover(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/workspaces", gin.H{"workspace_id": "ws_1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	// Burn the whole FREE monthly allowance.
	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "AI", "amount": 100_000}, "consume-1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "AI", "amount": 1}, "consume-2")
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), `"needed":1`)

	// A new billing period restores the allowance without touching
	// the ledger.
	e.clk.Advance(31 * 24 * time.Hour)
	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/period/advance",
		gin.H{"at": e.clk.Now().Format(time.RFC3339)}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "AI", "amount": 1}, "consume-3")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmailDailyCapLifecycle(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/workspaces", gin.H{"workspace_id": "ws_1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	// FREE: 20 sends per day.
	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "EMAIL", "amount": 20}, "send-1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "EMAIL", "amount": 1}, "send-2")
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	// Midnight job resets the counter.
	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/email/reset-daily", gin.H{}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/workspaces/ws_1/consume",
		gin.H{"kind": "EMAIL", "amount": 1}, "send-3")
	assert.Equal(t, http.StatusOK, rec.Code)
}

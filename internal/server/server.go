package server

import (
	"context"
	"net/http"
	"time"

	"github.com/creatorhq/creditd/internal/config"
	"github.com/creatorhq/creditd/internal/entitlement"
	entitlementdomain "github.com/creatorhq/creditd/internal/entitlement/domain"
	"github.com/creatorhq/creditd/internal/idempotency"
	idempotencydomain "github.com/creatorhq/creditd/internal/idempotency/domain"
	"github.com/creatorhq/creditd/internal/ledger"
	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	"github.com/creatorhq/creditd/internal/observability"
	obsmiddleware "github.com/creatorhq/creditd/internal/observability/logger"
	obsmetrics "github.com/creatorhq/creditd/internal/observability/metrics"
	obstracing "github.com/creatorhq/creditd/internal/observability/tracing"
	"github.com/creatorhq/creditd/internal/ratelimit"
	"github.com/creatorhq/creditd/internal/workspace"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	workspace.Module,
	ledger.Module,
	entitlement.Module,
	idempotency.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	workspaceSvc   workspacedomain.Service
	ledgerSvc      ledgerdomain.Service
	entitlementSvc entitlementdomain.Service
	idempotencySvc idempotencydomain.Service
	consumeLimiter *ratelimit.ConsumeLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	WorkspaceSvc   workspacedomain.Service
	LedgerSvc      ledgerdomain.Service
	EntitlementSvc entitlementdomain.Service
	IdempotencySvc idempotencydomain.Service
	ConsumeLimiter *ratelimit.ConsumeLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		workspaceSvc:   p.WorkspaceSvc,
		ledgerSvc:      p.LedgerSvc,
		entitlementSvc: p.EntitlementSvc,
		idempotencySvc: p.IdempotencySvc,
		consumeLimiter: p.ConsumeLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/workspaces", s.ProvisionWorkspace)

	ws := v1.Group("/workspaces/:workspace_id")
	{
		ws.GET("", s.GetWorkspaceOverview)
		ws.POST("/plan", s.ChangeWorkspacePlan)
		ws.POST("/period/advance", s.AdvanceWorkspacePeriod)
		ws.POST("/email/reset-daily", s.ResetWorkspaceDaily)

		ws.GET("/ledger", s.ListLedgerEntries)

		// Mutations that move credit carry the idempotency gate; reads
		// and rollover primitives do not.
		ws.POST("/consume", s.ConsumeRateLimit(), s.IdempotencyGate(), s.ConsumeCredits)
		ws.POST("/grants", s.IdempotencyGate(), s.GrantCredits)
	}
}

package server

import (
	"strings"

	"github.com/creatorhq/creditd/internal/config"
	"github.com/creatorhq/creditd/internal/observability/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyGate claims the request's Idempotency-Key before the handler
// runs. A replayed key aborts with a conflict; a missing key is handled
// per the configured mode.
func (s *Server) IdempotencyGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.IdempotencyMode == config.IdempotencyOff {
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		path := c.FullPath()
		workspaceID := strings.TrimSpace(c.Param("workspace_id"))

		if key == "" {
			if s.cfg.IdempotencyMode == config.IdempotencyEnforce {
				AbortWithError(c, newValidationError("idempotency_key", "missing_idempotency_key", "Idempotency-Key header is required"))
				return
			}
			logger.FromContext(c.Request.Context()).Warn("mutating request without idempotency key",
				zap.String("path", path),
			)
			c.Next()
			return
		}

		if err := s.idempotencySvc.Guard(c.Request.Context(), key, path, workspaceID); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Next()
	}
}

package server

import (
	"strings"

	"github.com/creatorhq/creditd/internal/observability/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConsumeRateLimit throttles consume calls per workspace through the
// optional redis token bucket. Without a configured limiter it admits
// everything.
func (s *Server) ConsumeRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.consumeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		workspaceID := strings.TrimSpace(c.Param("workspace_id"))
		if workspaceID == "" {
			AbortWithError(c, invalidRequestError())
			return
		}

		res, err := s.consumeLimiter.Allow(ctx, workspaceID)
		if err != nil {
			logger.FromContext(ctx).Warn("consume rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			logger.FromContext(ctx).Warn("consume rate limit exceeded",
				zap.String("endpoint", c.FullPath()),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, c.FullPath())
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creatorhq/creditd/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyConsumeWorkspace = "credit:consume:ws:%s"

// ConsumeLimiter throttles the consume endpoint per workspace. A nil
// limiter (rate limiting disabled) admits everything.
type ConsumeLimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewConsumeLimiter(cfg config.Config) (*ConsumeLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ConsumeRate <= 0 || limitCfg.ConsumeBurst <= 0 {
		return nil, errors.New("consume rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &ConsumeLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.ConsumeRate,
		burst:   limitCfg.ConsumeBurst,
	}, nil
}

func (l *ConsumeLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ConsumeLimiter) Allow(ctx context.Context, workspaceID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	key := fmt.Sprintf(keyConsumeWorkspace, workspaceID)
	return l.bucket.Allow(callCtx, key, l.rate, l.burst)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// Throttle limits failed logins per identifier.
type Throttle interface {
	Check(ctx context.Context, identifier string) error
	Fail(ctx context.Context, identifier string)
	Reset(ctx context.Context, identifier string)
}

// NoThrottle never limits.
type NoThrottle struct{}

func (NoThrottle) Check(context.Context, string) error { return nil }
func (NoThrottle) Fail(context.Context, string)        {}
func (NoThrottle) Reset(context.Context, string)       {}

var _ Throttle = (*RedisThrottle)(nil)

// RedisThrottle keeps a fixed-window failure counter per identifier in Redis.
// Redis outages fail open: logins are allowed and the error is logged.
type RedisThrottle struct {
	client      redis.UniversalClient
	maxAttempts int
	window      time.Duration
	logger      *logger.Logger
}

func NewRedisThrottle(client redis.UniversalClient, maxAttempts int, window time.Duration, logger *logger.Logger) *RedisThrottle {
	return &RedisThrottle{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

// Check returns ErrTooManyAttempts once the identifier has used up its budget.
func (t *RedisThrottle) Check(ctx context.Context, identifier string) error {
	count, err := t.client.Get(ctx, throttleKey(identifier)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		t.logger.Warn("Throttle: failed to read attempt counter",
			"error", err.Error())
		return nil
	}

	if count >= int64(t.maxAttempts) {
		return fmt.Errorf("%d failed attempts: %w", count, model.ErrTooManyAttempts)
	}
	return nil
}

// Fail records one failed attempt.
func (t *RedisThrottle) Fail(ctx context.Context, identifier string) {
	key := throttleKey(identifier)

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		t.logger.Warn("Throttle: failed to increment attempt counter",
			"error", err.Error())
		return
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			t.logger.Warn("Throttle: failed to set counter expiry",
				"error", err.Error())
		}
	}
}

// Reset clears the counter after a successful login.
func (t *RedisThrottle) Reset(ctx context.Context, identifier string) {
	if err := t.client.Del(ctx, throttleKey(identifier)).Err(); err != nil {
		t.logger.Warn("Throttle: failed to reset attempt counter",
			"error", err.Error())
	}
}

func throttleKey(identifier string) string {
	return "identity:login:attempts:" + strings.ToLower(strings.TrimSpace(identifier))
}

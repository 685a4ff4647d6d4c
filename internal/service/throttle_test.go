package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/testutil"
)

func newTestThrottle(t *testing.T, max int) (*RedisThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisThrottle(client, max, time.Minute, testutil.MakeNoopLogger()), mr
}

func TestRedisThrottle(t *testing.T) {
	ctx := context.Background()
	th, mr := newTestThrottle(t, 3)

	for range 3 {
		require.NoError(t, th.Check(ctx, "hari@x.com"))
		th.Fail(ctx, "hari@x.com")
	}
	require.ErrorIs(t, th.Check(ctx, "hari@x.com"), model.ErrTooManyAttempts)
	require.ErrorIs(t, th.Check(ctx, " HARI@x.com "), model.ErrTooManyAttempts)
	require.NoError(t, th.Check(ctx, "other@x.com"))

	ttl := mr.TTL(throttleKey("hari@x.com"))
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, th.Check(ctx, "hari@x.com"))
}

func TestRedisThrottle_Reset(t *testing.T) {
	ctx := context.Background()
	th, _ := newTestThrottle(t, 1)

	th.Fail(ctx, "hari@x.com")
	require.ErrorIs(t, th.Check(ctx, "hari@x.com"), model.ErrTooManyAttempts)

	th.Reset(ctx, "hari@x.com")
	require.NoError(t, th.Check(ctx, "hari@x.com"))
}

func TestRedisThrottle_FailsOpen(t *testing.T) {
	ctx := context.Background()
	th, mr := newTestThrottle(t, 1)
	th.Fail(ctx, "hari@x.com")

	mr.Close()

	require.NoError(t, th.Check(ctx, "hari@x.com"))
	th.Fail(ctx, "hari@x.com")
	th.Reset(ctx, "hari@x.com")
}

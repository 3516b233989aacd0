package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, 3, time.Minute, 2*time.Minute), mr
}

func TestIPRateLimit(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", "login")
		require.NoError(t, err)
		assert.False(t, exceeded, "attempt %d", i)
		require.NoError(t, l.RecordIPRequestWithPurpose(ctx, "10.0.0.1", "login"))
	}

	exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", "login")
	require.NoError(t, err)
	assert.True(t, exceeded)

	// Other purposes and other IPs are counted separately.
	exceeded, err = l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", "register")
	require.NoError(t, err)
	assert.False(t, exceeded)
	exceeded, err = l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.2", "login")
	require.NoError(t, err)
	assert.False(t, exceeded)

	mr.FastForward(time.Minute + time.Second)

	exceeded, err = l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", "login")
	require.NoError(t, err)
	assert.False(t, exceeded)
}

func TestIPRateLimit_WindowNotExtended(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, l.RecordIPRequestWithPurpose(ctx, "10.0.0.1", "forgot_password"))
	mr.FastForward(40 * time.Second)
	require.NoError(t, l.RecordIPRequestWithPurpose(ctx, "10.0.0.1", "forgot_password"))

	assert.Equal(t, 20*time.Second, mr.TTL(ipKey("10.0.0.1", "forgot_password")))
}

func TestEmailCooldown(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	on, err := l.CheckEmailCooldown(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, l.SetEmailCooldown(ctx, " A@X.com "))

	on, err = l.CheckEmailCooldown(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, on)

	mr.FastForward(2*time.Minute + time.Second)

	on, err = l.CheckEmailCooldown(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, on)
}

func TestLimiter_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()

	_, err := l.CheckIPRateLimitWithPurpose(context.Background(), "10.0.0.1", "login")
	assert.Error(t, err)
}

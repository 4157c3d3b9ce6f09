package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

func TestNoopValkey_BasicOps(t *testing.T) {
	cch := NewNoopValkeyCache(time.Minute, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, cch.Set(ctx, "k1", "v1", time.Second))
	b, err := cch.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))

	require.NoError(t, cch.Set(ctx, "k2", map[string]int{"a": 1}, 0))
	b, err = cch.Get(ctx, "k2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	require.NoError(t, cch.Delete(ctx, "k1"))
	_, err = cch.Get(ctx, "k1")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	assert.Error(t, cch.HealthCheck(ctx))
}

func TestNoopValkey_Expiry(t *testing.T) {
	cch := NewNoopValkeyCache(time.Minute, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, cch.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(10 * time.Millisecond)
	_, err := cch.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNoopValkey_WarnsOnCreate(t *testing.T) {
	log := logger.NewMockLogger()
	NewNoopValkeyCache(time.Minute, log)
	assert.Equal(t, 1, log.Count("warn"))
}

func TestAutoSwap_SwitchesToRealCache(t *testing.T) {
	log := logger.NewMockLogger()
	fallback := NewNoopValkeyCache(time.Minute, log)
	real := NewNoopValkeyCache(time.Minute, log)
	require.NoError(t, real.Set(context.Background(), "only-in-real", "yes", 0))

	var attempts int32
	a := newAutoSwapCache(fallback, log, 5*time.Millisecond, func() (ValkeyCluster, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return nil, errors.New("connection refused")
		}
		return real, nil
	})
	defer a.Stop()

	require.Eventually(t, func() bool {
		b, err := a.Get(context.Background(), "only-in-real")
		return err == nil && string(b) == "yes"
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, log.Count("warn"), 2)
	a.Stop()
}

func TestDial_NoNodes(t *testing.T) {
	_, err := Dial(Options{})
	assert.Error(t, err)
}

func TestNew_FallsBackWhenUnreachable(t *testing.T) {
	log := logger.NewMockLogger()
	c := New(Options{Nodes: []string{"127.0.0.1:1"}, TTL: time.Minute}, log)

	a, ok := c.(*autoSwapCache)
	require.True(t, ok)
	defer a.Stop()

	ctx := context.Background()
	assert.Error(t, c.HealthCheck(ctx))
	require.NoError(t, c.Set(ctx, "k", "v", 0))
	b, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(b))
	assert.GreaterOrEqual(t, log.Count("warn"), 2)
}

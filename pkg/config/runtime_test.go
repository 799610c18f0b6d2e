package config

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntimeStore(t *testing.T) *RuntimeStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRuntimeStore(rdb, defaultSettings())
}

func TestRuntimeStoreSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	require.NoError(t, store.Set(ctx, "max_actions_per_hour", 10))
	v, err := store.Get(ctx, "max_actions_per_hour")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 10, store.Int(ctx, "max_actions_per_hour"))
}

func TestRuntimeStoreGetFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	v, err := store.Get(ctx, "scan_interval_seconds")
	require.NoError(t, err)
	assert.Equal(t, 300, v)
}

func TestRuntimeStoreResetRestoresDefault(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	require.NoError(t, store.Set(ctx, "scan_interval_seconds", 60))
	assert.Equal(t, 60, store.Int(ctx, "scan_interval_seconds"))

	require.NoError(t, store.Reset(ctx, "scan_interval_seconds"))
	assert.Equal(t, 300, store.Int(ctx, "scan_interval_seconds"))
}

func TestRuntimeStoreResetAll(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	require.NoError(t, store.Set(ctx, "quorum_enabled", false))
	require.NoError(t, store.Set(ctx, "escalation_threshold", 7))
	require.NoError(t, store.ResetAll(ctx))

	assert.True(t, store.Bool(ctx, "quorum_enabled"))
	assert.Equal(t, 3, store.Int(ctx, "escalation_threshold"))
}

func TestRuntimeStoreRejectsUnknownKey(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	_, err := store.Get(ctx, "no_such_key")
	assert.Error(t, err)
	assert.Error(t, store.Set(ctx, "no_such_key", 1))
	assert.Error(t, store.Reset(ctx, "no_such_key"))
}

func TestRuntimeStoreRejectsWrongType(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	assert.Error(t, store.Set(ctx, "max_actions_per_hour", "lots"))
	assert.Error(t, store.Set(ctx, "quorum_enabled", 1))
	assert.Error(t, store.Set(ctx, "quorum_threshold", "high"))
}

func TestRuntimeStoreAcceptsJSONNumbers(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	// JSON decoding hands integers to us as float64.
	require.NoError(t, store.Set(ctx, "max_actions_per_hour", float64(12)))
	assert.Equal(t, 12, store.Int(ctx, "max_actions_per_hour"))

	assert.Error(t, store.Set(ctx, "max_actions_per_hour", 12.5))
}

func TestRuntimeStoreAllIncludesOverridesAndDefaults(t *testing.T) {
	ctx := context.Background()
	store := newTestRuntimeStore(t)

	require.NoError(t, store.Set(ctx, "fast_loop_interval_seconds", 15))
	all := store.All(ctx)

	assert.Equal(t, 15, all["fast_loop_interval_seconds"])
	assert.Equal(t, 300, all["scan_interval_seconds"])
	assert.Equal(t, true, all["quorum_enabled"])
	assert.Len(t, all, len(runtimeSchema))
}

func TestRuntimeStoreDegradesWithoutRedis(t *testing.T) {
	ctx := context.Background()
	store := NewRuntimeStore(nil, defaultSettings())

	v, err := store.Get(ctx, "max_actions_per_hour")
	require.NoError(t, err)
	assert.Equal(t, 30, v)
	assert.Error(t, store.Set(ctx, "max_actions_per_hour", 5))
}

func TestRuntimeStoreIgnoresMalformedOverride(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRuntimeStore(rdb, defaultSettings())

	mr.HSet(runtimeConfigKey, "max_actions_per_hour", "garbage")
	assert.Equal(t, 30, store.Int(ctx, "max_actions_per_hour"))
}

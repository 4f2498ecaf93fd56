package infrastructure

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

func newTestRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRegistryWithClient(client, "vidsplit:active:", time.Hour, zap.NewNop()), mr
}

func registries(t *testing.T) map[string]domain.SessionRegistry {
	redisRegistry, _ := newTestRedisRegistry(t)
	return map[string]domain.SessionRegistry{
		"memory": NewMemoryRegistry(),
		"redis":  redisRegistry,
	}
}

func TestRegistry_AcquireRelease(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := reg.Acquire(ctx, "42", "S1")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = reg.Acquire(ctx, "42", "S2")
			require.NoError(t, err)
			assert.False(t, ok, "second acquire for the same requester must fail")

			ok, err = reg.Acquire(ctx, "43", "S3")
			require.NoError(t, err)
			assert.True(t, ok, "other requesters are independent")

			require.NoError(t, reg.Release(ctx, "42", "S2"))
			ok, err = reg.Acquire(ctx, "42", "S4")
			require.NoError(t, err)
			assert.False(t, ok, "release by a non-owner is a no-op")

			require.NoError(t, reg.Release(ctx, "42", "S1"))
			ok, err = reg.Acquire(ctx, "42", "S5")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestRegistry_ConcurrentAcquire(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			var (
				wg      sync.WaitGroup
				winners atomic.Int32
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					ok, err := reg.Acquire(context.Background(), "7", string(rune('A'+i)))
					if err == nil && ok {
						winners.Add(1)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, int32(1), winners.Load())
		})
	}
}

func TestRegistry_Refresh(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := reg.Refresh(ctx, "42", "S1")
			require.NoError(t, err)
			assert.False(t, ok, "nothing to refresh")

			ok, err = reg.Acquire(ctx, "42", "S1")
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = reg.Refresh(ctx, "42", "S1")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = reg.Refresh(ctx, "42", "S2")
			require.NoError(t, err)
			assert.False(t, ok, "only the owner can refresh")
		})
	}
}

func TestRedisRegistry_TTL(t *testing.T) {
	reg, mr := newTestRedisRegistry(t)
	ctx := context.Background()

	ok, err := reg.Acquire(ctx, "42", "S1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "S1", mustGet(t, mr, "vidsplit:active:42"))
	assert.Equal(t, time.Hour, mr.TTL("vidsplit:active:42"))

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("vidsplit:active:42"))

	ok, err = reg.Acquire(ctx, "42", "S2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRegistry_RefreshKeepsLongSessionSlot(t *testing.T) {
	reg, mr := newTestRedisRegistry(t)
	ctx := context.Background()

	ok, err := reg.Acquire(ctx, "42", "S1")
	require.NoError(t, err)
	require.True(t, ok)

	// two 50 minute stages against a one hour TTL
	mr.FastForward(50 * time.Minute)
	ok, err = reg.Refresh(ctx, "42", "S1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("vidsplit:active:42"))

	mr.FastForward(50 * time.Minute)
	assert.Equal(t, "S1", mustGet(t, mr, "vidsplit:active:42"))

	ok, err = reg.Acquire(ctx, "42", "S2")
	require.NoError(t, err)
	assert.False(t, ok, "the refreshed slot is still held")
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestRedisRegistry_Unavailable(t *testing.T) {
	reg, mr := newTestRedisRegistry(t)
	mr.Close()

	_, err := reg.Acquire(context.Background(), "42", "S1")
	assert.Error(t, err)
}

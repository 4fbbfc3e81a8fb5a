package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, runID string) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGuard(client, "payengine:tx", runID, time.Minute), mr
}

func TestRedisGuardClaim(t *testing.T) {
	g, mr := newGuard(t, "run-1")
	ctx := context.Background()

	ok, err := g.Claim(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("payengine:tx:run-1:7"))
	assert.Equal(t, time.Minute, mr.TTL("payengine:tx:run-1:7"))
}

func TestRedisGuardKeysAreRunScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a := NewRedisGuard(client, "p", "run-a", time.Minute)
	b := NewRedisGuard(client, "p", "run-b", time.Minute)

	ok, err := a.Claim(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Claim(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok, "another run may reuse the id")
}

func TestRedisGuardExpiry(t *testing.T) {
	g, mr := newGuard(t, "run-1")

	ok, _ := g.Claim(context.Background(), 1)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err := g.Claim(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuardUnavailable(t *testing.T) {
	g, mr := newGuard(t, "run-1")
	mr.Close()

	_, err := g.Claim(context.Background(), 1)
	assert.Error(t, err)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNonceStore_SingleUse(t *testing.T) {
	store := NewMemoryNonceStore()
	ctx := context.Background()

	ok, err := store.Issue(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = store.Issue(ctx, "abc", time.Minute)
	assert.False(t, ok, "outstanding nonce cannot be reissued")

	ok, _ = store.Consume(ctx, "abc")
	assert.True(t, ok)
	ok, _ = store.Consume(ctx, "abc")
	assert.False(t, ok, "nonce is single use")
}

func TestMemoryNonceStore_Expiry(t *testing.T) {
	store := NewMemoryNonceStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Issue(ctx, "abc", time.Minute)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)

	ok, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisNonceStore(t *testing.T) {
	s := miniredis.RunT(t)
	store := NewRedisNonceStore(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	ctx := context.Background()

	ok, err := store.Issue(ctx, "abc", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Issue(ctx, "abc", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisNonceStore_Expiry(t *testing.T) {
	s := miniredis.RunT(t)
	store := NewRedisNonceStore(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	ctx := context.Background()

	_, err := store.Issue(ctx, "abc", time.Minute)
	require.NoError(t, err)
	s.FastForward(2 * time.Minute)

	ok, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "tt:"), mr
}

func TestStoreRoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "billing:checkout:status:ref_1", `{"status":"completed"}`, time.Minute))
	assert.True(t, mr.Exists("tt:billing:checkout:status:ref_1"))

	v, ok, err := s.Get(ctx, "billing:checkout:status:ref_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"status":"completed"}`, v)

	require.NoError(t, s.Delete(ctx, "billing:checkout:status:ref_1"))
	_, ok, err = s.Get(ctx, "billing:checkout:status:ref_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 30*time.Second))
	mr.FastForward(31 * time.Second)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, ok, err := s.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

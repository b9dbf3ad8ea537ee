package aging

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	built := BuildSnapshot(testAccount, nil, 202406)

	_, ok, err := cache.Get(ctx, testAccount, 202406)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, built))

	got, ok, err := cache.Get(ctx, testAccount, 202406)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, built.Period, got.Period)
	require.True(t, got.Closing.Equal(built.Closing))
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	built := BuildSnapshot(testAccount, nil, 202406)
	require.NoError(t, cache.Set(ctx, built))

	require.NoError(t, cache.Bump(ctx))

	_, ok, err := cache.Get(ctx, testAccount, 202406)
	require.NoError(t, err)
	require.False(t, ok, "bumped version must miss old entries")
}

func TestCachedAgerBuildsOnMiss(t *testing.T) {
	cache := newTestCache(t)
	repo := &fakeLedgerRepo{txns: nil}
	repo.txns = append(repo.txns, txn("T1", 202405, "40.00"))
	cached := NewCachedAger(NewAger(repo), cache)

	snap, err := cached.Snapshot(context.Background(), testAccount, 202406)
	require.NoError(t, err)
	require.Equal(t, "40.00", snap.Closing.StringFixed(2))

	// Second call served from cache even if the repo now fails.
	repo.err = context.DeadlineExceeded
	snap, err = cached.Snapshot(context.Background(), testAccount, 202406)
	require.NoError(t, err)
	require.Equal(t, "40.00", snap.Closing.StringFixed(2))
}

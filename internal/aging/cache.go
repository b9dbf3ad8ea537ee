package aging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const cacheVersionKey = "aging:version"

// Cache wraps Redis based caching of aged-balance snapshots with versioning
// controls. Bumping the version invalidates every cached snapshot at once,
// which is how allocation and interest commits drop stale balances.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates all cached snapshots by advancing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) key(ctx context.Context, account ledger.AccountRef, period shared.Period) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("aging:v%d:%s:%s", ver, account, period), nil
}

// Get returns a cached snapshot when present.
func (c *Cache) Get(ctx context.Context, account ledger.AccountRef, period shared.Period) (Snapshot, bool, error) {
	if c == nil || c.client == nil {
		return Snapshot{}, false, nil
	}
	key, err := c.key(ctx, account, period)
	if err != nil {
		return Snapshot{}, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Set stores a snapshot under the current version.
func (c *Cache) Set(ctx context.Context, snap Snapshot) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, snap.Account, snap.Period)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// SnapshotObserver counts served snapshots by source, "cache" or "build".
type SnapshotObserver interface {
	ObserveAgingSnapshot(source string)
}

// CachedAger decorates an Ager with Redis caching and deduplicates
// concurrent builds of the same snapshot.
type CachedAger struct {
	ager     *Ager
	cache    *Cache
	observer SnapshotObserver
}

// NewCachedAger builds the decorator.
func NewCachedAger(ager *Ager, cache *Cache) *CachedAger {
	return &CachedAger{ager: ager, cache: cache}
}

// WithObserver attaches a metrics observer and returns the receiver.
func (c *CachedAger) WithObserver(observer SnapshotObserver) *CachedAger {
	c.observer = observer
	return c
}

func (c *CachedAger) observe(source string) {
	if c.observer != nil {
		c.observer.ObserveAgingSnapshot(source)
	}
}

// Snapshot returns the cached snapshot when fresh, building it otherwise.
func (c *CachedAger) Snapshot(ctx context.Context, account ledger.AccountRef, period shared.Period) (Snapshot, error) {
	if c == nil || c.ager == nil {
		return Snapshot{}, errors.New("aging: cached ager not initialised")
	}
	if c.cache == nil {
		c.observe("build")
		return c.ager.Snapshot(ctx, account, period)
	}
	if snap, ok, err := c.cache.Get(ctx, account, period); err == nil && ok {
		c.observe("cache")
		return snap, nil
	}
	c.observe("build")

	key := fmt.Sprintf("%s:%s", account, period)
	resultChan := c.cache.group.DoChan(key, func() (interface{}, error) {
		snap, err := c.ager.Snapshot(ctx, account, period)
		if err != nil {
			return nil, err
		}
		_ = c.cache.Set(ctx, snap)
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// Package tiered layers a local in-process cache over a shared remote cache.
//
// The matching engine runs multiple instances; the local level absorbs the
// hot path while the remote level keeps candidate snapshots consistent
// across instances within the TTL.
package tiered

import (
	"context"
	"time"

	"github.com/wandero/matching/internal/port/cache"
)

// Cache reads through local then remote, backfilling local on a remote hit.
// Writes and deletes go to both levels.
type Cache struct {
	local    cache.Cache
	remote   cache.Cache
	localTTL time.Duration
}

// New creates a tiered cache. localTTL bounds how long backfilled entries
// live in the local level.
func New(local, remote cache.Cache, localTTL time.Duration) *Cache {
	return &Cache{local: local, remote: remote, localTTL: localTTL}
}

// Get checks the local level, then the remote. A remote hit backfills local.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.remote.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		_ = c.local.Set(ctx, key, val, c.localTTL)
		return val, true, nil
	}
	return nil, false, nil
}

// Set writes to both levels.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	localTTL := ttl
	if c.localTTL > 0 && c.localTTL < ttl {
		localTTL = c.localTTL
	}
	if err := c.local.Set(ctx, key, value, localTTL); err != nil {
		return err
	}
	return c.remote.Set(ctx, key, value, ttl)
}

// Delete removes the key from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, key)
}

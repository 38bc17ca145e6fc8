// Package cache keeps restore traffic under the artifact store's request
// quota: List results are memoized for a short TTL so repeated candidate
// probes within one window hit the origin at most once per name.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"stashkit/internal/stash"
	"stashkit/internal/store"
)

type Config struct {
	ListTTL        time.Duration
	ListMaxEntries int
}

func DefaultConfig() Config {
	return Config{
		ListTTL:        30 * time.Second,
		ListMaxEntries: 512,
	}
}

type MetricsSnapshot struct {
	ListHits     uint64
	ListMisses   uint64
	OriginReads  uint64
	OriginWrites uint64
}

type metrics struct {
	listHits     atomic.Uint64
	listMisses   atomic.Uint64
	originReads  atomic.Uint64
	originWrites atomic.Uint64
}

// CachedStore decorates a store.Store with a TTL'd List cache. Writes and
// prunes invalidate, so a fresh save is visible to the next restore.
type CachedStore struct {
	origin    store.Store
	listCache *LRUTTL[string, []stash.Record]
	metrics   metrics
}

func NewCachedStore(origin store.Store, cfg Config) *CachedStore {
	def := DefaultConfig()
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	return &CachedStore{
		origin:    origin,
		listCache: NewLRUTTL[string, []stash.Record](cfg.ListMaxEntries, cfg.ListTTL),
	}
}

func (c *CachedStore) Upload(ctx context.Context, name string, payload []byte, opts store.UploadOptions) (stash.Record, error) {
	c.metrics.originWrites.Add(1)
	rec, err := c.origin.Upload(ctx, name, payload, opts)
	if err == nil {
		c.listCache.Delete(name)
	}
	return rec, err
}

func (c *CachedStore) Download(ctx context.Context, name string, id int64) ([]byte, stash.Record, error) {
	c.metrics.originReads.Add(1)
	return c.origin.Download(ctx, name, id)
}

func (c *CachedStore) List(ctx context.Context, name string) ([]stash.Record, error) {
	if records, ok := c.listCache.Get(name); ok {
		c.metrics.listHits.Add(1)
		return append([]stash.Record(nil), records...), nil
	}
	c.metrics.listMisses.Add(1)
	c.metrics.originReads.Add(1)
	records, err := c.origin.List(ctx, name)
	if err != nil {
		return nil, err
	}
	c.listCache.Set(name, append([]stash.Record(nil), records...))
	return records, nil
}

func (c *CachedStore) Delete(ctx context.Context, name string) (int, error) {
	c.metrics.originWrites.Add(1)
	n, err := c.origin.Delete(ctx, name)
	if err == nil {
		c.listCache.Delete(name)
	}
	return n, err
}

func (c *CachedStore) Prune(ctx context.Context, now time.Time, keep func(stash.Record) bool) ([]stash.Record, error) {
	c.metrics.originWrites.Add(1)
	pruned, err := c.origin.Prune(ctx, now, keep)
	if err == nil && len(pruned) > 0 {
		c.listCache.Clear()
	}
	return pruned, err
}

func (c *CachedStore) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		ListHits:     c.metrics.listHits.Load(),
		ListMisses:   c.metrics.listMisses.Load(),
		OriginReads:  c.metrics.originReads.Load(),
		OriginWrites: c.metrics.originWrites.Load(),
	}
}

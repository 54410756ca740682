// Package pkgcache memoizes the packages returned by the daemon so that
// repeated queries hand back the same *Package for the same identity
// string.
package pkgcache

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"yumex/pkg/types"
)

// ErrBucketNotPopulated is returned by Get for a bucket that has not been
// populated since the last Reset.
var ErrBucketNotPopulated = errors.New("package bucket not populated")

// Config configures a Cache.
type Config struct {
	Fetcher Fetcher
	Filters []Filter
	// Groups resolves package names to groups; nil disables group lookups.
	Groups GroupLookup
	Logger *zerolog.Logger
}

// Cache partitions packages by the bucket they were listed under.
type Cache struct {
	log     *zerolog.Logger
	fetcher Fetcher
	groups  *GroupCache

	mu        sync.Mutex
	filters   []Filter
	index     map[string]*Package
	buckets   map[types.Bucket][]string
	populated map[types.Bucket]bool
}

func New(cfg Config) *Cache {
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	c := &Cache{
		log:     cfg.Logger,
		fetcher: cfg.Fetcher,
		groups:  NewGroupCache(cfg.Groups),
		filters: append([]Filter(nil), cfg.Filters...),
	}
	c.resetLocked()
	return c
}

func (c *Cache) resetLocked() {
	c.index = make(map[string]*Package)
	c.buckets = make(map[types.Bucket][]string)
	c.populated = make(map[types.Bucket]bool)
}

// Populate stores recs as the content of bucket and returns the filtered
// packages. Records whose identity is already cached resolve to the
// existing instance.
func (c *Cache) Populate(bucket types.Bucket, recs []types.PackageRecord) []*Package {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		id := rec.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := c.index[id]; !ok {
			c.index[id] = newPackage(rec, bucket.DefaultAction(), c.fetcher)
		}
		ids = append(ids, id)
	}
	c.buckets[bucket] = ids
	c.populated[bucket] = true
	c.log.Debug().Str("event", "cache_populate").Str("bucket", string(bucket)).Int("records", len(recs)).Int("packages", len(ids)).Msg("bucket populated")
	return applyFilters(c.packagesLocked(ids), c.filters)
}

// Get returns the filtered packages of bucket. An unpopulated bucket
// yields no packages and ErrBucketNotPopulated.
func (c *Cache) Get(bucket types.Bucket) ([]*Package, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.populated[bucket] {
		c.log.Error().Str("event", "cache_unpopulated").Str("bucket", string(bucket)).Msg("bucket queried before it was populated")
		return nil, ErrBucketNotPopulated
	}
	return applyFilters(c.packagesLocked(c.buckets[bucket]), c.filters), nil
}

func (c *Cache) packagesLocked(ids []string) []*Package {
	out := make([]*Package, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.index[id])
	}
	return out
}

// Populated reports whether bucket has been fetched since the last Reset.
func (c *Cache) Populated(bucket types.Bucket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.populated[bucket]
}

// Lookup finds a cached package by identity string.
func (c *Cache) Lookup(id string) (*Package, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.index[id]
	return p, ok
}

// Len is the number of distinct cached packages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *Cache) SetFilters(filters ...Filter) {
	c.mu.Lock()
	c.filters = append([]Filter(nil), filters...)
	c.mu.Unlock()
}

// ClearQueued drops the queued and selected marks of every package.
func (c *Cache) ClearQueued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.index {
		p.SetQueued(false)
		p.SetSelected(false)
	}
}

// Reset forgets every bucket together with the group cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.groups.Reset()
	c.log.Debug().Str("event", "cache_reset").Msg("package cache reset")
}

// Groups returns the group membership cache, reset together with the packages.
func (c *Cache) Groups() *GroupCache { return c.groups }

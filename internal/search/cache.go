package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/ssdp"
)

// DefaultCacheSize bounds the number of USNs a Cache keeps.
const DefaultCacheSize = 512

// Cache keeps the replies of repeated searches in memory, keyed by USN, so
// a caller can hold on to the last known set of devices and refresh it from
// the network. Nothing is persisted.
type Cache struct {
	searcher   *Searcher
	opts       ssdp.SearchOptions
	minRefresh time.Duration
	entries    *lru.Cache[string, *ssdp.SearchResponse]
	now        func() time.Time

	refreshMu   sync.Mutex // serializes network refreshes
	mu          sync.RWMutex
	lastUpdated time.Time
}

// NewCache creates an empty cache that refreshes with opts. A refresh
// within minRefresh of the previous one is skipped. size <= 0 uses
// DefaultCacheSize.
func NewCache(s *Searcher, opts ssdp.SearchOptions, minRefresh time.Duration, size int) (*Cache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *ssdp.SearchResponse](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	return &Cache{
		searcher:   s,
		opts:       opts,
		minRefresh: minRefresh,
		entries:    entries,
		now:        time.Now,
	}, nil
}

// Refresh runs a search unless the cache was refreshed less than
// minRefresh ago, and merges the replies by USN. It reports whether a
// search ran. Replies collected before an error are still merged.
func (c *Cache) Refresh(ctx context.Context) (bool, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if last := c.LastUpdated(); !last.IsZero() && c.now().Sub(last) < c.minRefresh {
		c.searcher.log.Debug("Cache fresh, skipping search", zap.Time("last_updated", last))
		return false, nil
	}

	responses, err := c.searcher.Search(ctx, c.opts)
	c.Merge(responses...)
	if err != nil {
		return true, err
	}

	c.mu.Lock()
	c.lastUpdated = c.now()
	c.mu.Unlock()
	return true, nil
}

// Merge adds replies, replacing older entries with the same USN.
func (c *Cache) Merge(responses ...*ssdp.SearchResponse) {
	for _, r := range responses {
		if r == nil || r.USN == "" {
			continue
		}
		c.entries.Add(r.USN, r)
	}
}

// Responses returns the entries that have not expired, least recently
// updated first. Expired entries are evicted.
func (c *Cache) Responses() []*ssdp.SearchResponse {
	now := c.now()
	var out []*ssdp.SearchResponse
	for _, usn := range c.entries.Keys() {
		r, ok := c.entries.Peek(usn)
		if !ok {
			continue
		}
		if !r.ReceivedAt.IsZero() && now.After(r.ExpiresAt()) {
			c.entries.Remove(usn)
			continue
		}
		out = append(out, r)
	}
	return out
}

// Get returns the entry for usn, if present and unexpired.
func (c *Cache) Get(usn string) (*ssdp.SearchResponse, bool) {
	r, ok := c.entries.Get(usn)
	if !ok {
		return nil, false
	}
	if !r.ReceivedAt.IsZero() && c.now().After(r.ExpiresAt()) {
		c.entries.Remove(usn)
		return nil, false
	}
	return r, true
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// LastUpdated returns when the last successful refresh finished.
func (c *Cache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

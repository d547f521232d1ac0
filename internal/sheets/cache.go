package sheets

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type cacheKey struct {
	spreadsheetID string
	worksheet     string
}

type cacheEntry struct {
	grid      [][]string
	fetchedAt time.Time
}

// Cache memoizes worksheet grids until explicitly invalidated. There is
// no TTL: worksheet data only moves when someone edits the spreadsheet,
// and the portals expose an explicit refresh for exactly that case.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry

	hits          int64
	misses        int64
	invalidations int64
}

// CacheStats is a point-in-time snapshot of cache activity.
type CacheStats struct {
	Entries       int     `json:"entries"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
}

// NewCache creates an empty worksheet cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]cacheEntry)}
}

func (c *Cache) get(key cacheKey) ([][]string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	return entry.grid, true
}

func (c *Cache) put(key cacheKey, grid [][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{grid: grid, fetchedAt: time.Now()}
}

// InvalidateAll drops every cached worksheet.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]cacheEntry)
	c.invalidations++
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Entries:       len(c.entries),
		Hits:          c.hits,
		Misses:        c.misses,
		Invalidations: c.invalidations,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// CachedSource serves fetches out of a Cache, delegating misses to the
// wrapped Source. Failed fetches are not cached, so a worksheet that was
// temporarily unreachable is retried on the next request.
type CachedSource struct {
	src    Source
	cache  *Cache
	logger *slog.Logger
}

// NewCachedSource wraps src with the given cache.
func NewCachedSource(src Source, cache *Cache, logger *slog.Logger) *CachedSource {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{
		src:    src,
		cache:  cache,
		logger: logger.With(slog.String("component", "sheets.cache")),
	}
}

// Fetch implements Source.
func (s *CachedSource) Fetch(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error) {
	key := cacheKey{spreadsheetID: spreadsheetID, worksheet: worksheet}
	if grid, ok := s.cache.get(key); ok {
		s.logger.DebugContext(ctx, "cache hit", slog.String("worksheet", worksheet))
		return grid, nil
	}

	grid, err := s.src.Fetch(ctx, spreadsheetID, worksheet)
	if err != nil {
		return nil, err
	}
	s.cache.put(key, grid)
	return grid, nil
}

// Invalidate drops every cached worksheet; the next fetch of each one
// goes back to the source.
func (s *CachedSource) Invalidate() {
	s.cache.InvalidateAll()
	s.logger.Info("worksheet cache invalidated")
}

// Stats exposes the underlying cache statistics.
func (s *CachedSource) Stats() CacheStats {
	return s.cache.Stats()
}

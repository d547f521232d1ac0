package identity

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultSessionTTL bounds how long a login stays valid without the
	// client logging in again.
	DefaultSessionTTL = 12 * time.Hour

	// DefaultMaxSessions caps the store before the oldest session is
	// evicted.
	DefaultMaxSessions = 1000

	cleanupInterval = 10 * time.Minute
)

type storeEntry[T any] struct {
	session   T
	createdAt time.Time
	expiresAt time.Time
}

// Store keeps live sessions in memory, keyed by opaque token. Entries
// expire after the configured TTL and the store evicts the oldest entry
// when full. All methods are safe for concurrent use.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]storeEntry[T]
	ttl     time.Duration
	maxSize int

	hits      int64
	misses    int64
	evictions int64

	logger   *slog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// StoreStats is a point-in-time snapshot of store activity.
type StoreStats struct {
	Active    int     `json:"active"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// NewStore creates a session store and starts its background cleanup
// goroutine. Non-positive ttl or maxSize fall back to the defaults.
// Callers should Close the store on shutdown.
func NewStore[T any](ttl time.Duration, maxSize int, logger *slog.Logger) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store[T]{
		entries: make(map[string]storeEntry[T]),
		ttl:     ttl,
		maxSize: maxSize,
		logger:  logger.With(slog.String("component", "session_store")),
		stop:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Put stores a session under the given token, evicting the oldest entry
// if the store is full.
func (s *Store[T]) Put(token string, session T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxSize {
		s.evictOldestLocked()
	}
	now := time.Now()
	s.entries[token] = storeEntry[T]{
		session:   session,
		createdAt: now,
		expiresAt: now.Add(s.ttl),
	}
}

// Get returns the session stored under token. Expired entries are
// removed lazily and count as misses.
func (s *Store[T]) Get(token string) (T, bool) {
	s.mu.RLock()
	entry, ok := s.entries[token]
	s.mu.RUnlock()

	var zero T
	if !ok {
		s.mu.Lock()
		s.misses++
		s.mu.Unlock()
		return zero, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, token)
		s.misses++
		s.mu.Unlock()
		return zero, false
	}

	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	return entry.session, true
}

// Delete removes the session stored under token, if any.
func (s *Store[T]) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// Len returns the number of stored sessions, including any not yet
// swept expired entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a snapshot of store activity.
func (s *Store[T]) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		Active:    len(s.entries),
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRate = float64(s.hits) / float64(total)
	}
	return stats
}

// Close stops the cleanup goroutine. The store remains usable but
// expired entries are then only removed on access.
func (s *Store[T]) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Store[T]) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *Store[T]) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for token, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, token)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("expired sessions removed",
			slog.Int("removed", removed),
			slog.Int("remaining", len(s.entries)))
	}
}

// evictOldestLocked removes the entry with the earliest creation time.
// The caller must hold the write lock.
func (s *Store[T]) evictOldestLocked() {
	var oldestToken string
	var oldestAt time.Time
	for token, entry := range s.entries {
		if oldestToken == "" || entry.createdAt.Before(oldestAt) {
			oldestToken = token
			oldestAt = entry.createdAt
		}
	}
	if oldestToken != "" {
		delete(s.entries, oldestToken)
		s.evictions++
	}
}

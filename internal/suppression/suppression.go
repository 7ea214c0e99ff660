// Package suppression tracks paths the engine is about to write itself so the
// watcher can ignore the filesystem events those writes produce.
package suppression

import (
	"path/filepath"
	"sync"
	"time"
)

// DefaultCapacity bounds the number of live entries.
const DefaultCapacity = 4096

type entry struct {
	expires time.Time
}

// Set is a concurrency-safe set of cleaned absolute paths with a per-entry
// TTL. An entry is consumed by the first event that matches it; entries
// that never match are dropped lazily once expired.
type Set struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]entry
	now      func() time.Time
}

// Option customizes a Set.
type Option func(*Set)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Set) { s.now = now }
}

// WithCapacity bounds the number of entries. When full, the entry closest to
// expiry is evicted.
func WithCapacity(n int) Option {
	return func(s *Set) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// New returns a Set whose entries live for ttl.
func New(ttl time.Duration, opts ...Option) *Set {
	s := &Set{
		ttl:      ttl,
		capacity: DefaultCapacity,
		entries:  make(map[string]entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add suppresses events for every path until the TTL elapses. Adding a path
// that is already present refreshes its expiry.
func (s *Set) Add(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	for _, path := range paths {
		if path == "" {
			continue
		}
		key := normalize(path)
		if _, exists := s.entries[key]; !exists && len(s.entries) >= s.capacity {
			s.evictLocked()
		}
		s.entries[key] = entry{expires: now.Add(s.ttl)}
	}
}

// Observe reports whether an event for path is self-generated. A match
// consumes the entry, so a later event on the same path, such as the user
// deleting a transcoded output, is handled normally.
func (s *Set) Observe(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalize(path)
	if _, ok := s.liveLocked(key); !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Release removes paths whose events will never arrive, such as the source
// of a failed encode.
func (s *Set) Release(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range paths {
		delete(s.entries, normalize(path))
	}
}

// Len returns the number of live entries.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	return len(s.entries)
}

func (s *Set) liveLocked(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Set) sweepLocked(now time.Time) {
	for key, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, key)
		}
	}
}

func (s *Set) evictLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, e := range s.entries {
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey, oldest = key, e.expires
		}
	}
	delete(s.entries, oldestKey)
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

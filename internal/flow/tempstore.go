package flow

import (
	"sync"
	"time"
)

// DefaultTempTTL is how long a remembered value stays readable.
const DefaultTempTTL = 10 * time.Minute

// TempStore is a generic expiring key-value cache. Unlike the ContextStore it
// enforces a TTL, evicting lazily on read. The router uses it to remember the
// last company each sender worked on, so follow-up commands can omit it.
type TempStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]tempEntry
}

type tempEntry struct {
	value     string
	expiresAt time.Time
}

// NewTempStore creates a TempStore with the given TTL (DefaultTempTTL when
// ttl <= 0).
func NewTempStore(ttl time.Duration) *TempStore {
	if ttl <= 0 {
		ttl = DefaultTempTTL
	}
	return &TempStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]tempEntry),
	}
}

// Set remembers a value for the key, restarting its TTL.
func (s *TempStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = tempEntry{value: value, expiresAt: s.now().Add(s.ttl)}
}

// Get returns the remembered value if it has not expired. Expired entries are
// removed on read.
func (s *TempStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

// Clear forgets the value for the key.
func (s *TempStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

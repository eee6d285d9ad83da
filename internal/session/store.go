package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrNotFound is returned when a session id is unknown or has expired.
var ErrNotFound = errors.New("session not found")

// Store keeps sessions by id, dropping the least recently used ones past
// MaxSessions and any left idle longer than IdleTTL.
type Store struct {
	mu       sync.Mutex
	cache    *expirable.LRU[string, *Session]
	maxChars int
	live     atomic.Int64
	onChange func(n int)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	MaxSessions int
	IdleTTL     time.Duration
	MaxChars    int

	// OnChange, if set, receives the session count after each add or eviction.
	OnChange func(n int)
}

// NewStore returns an empty Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10000
	}
	s := &Store{maxChars: cfg.MaxChars, onChange: cfg.OnChange}
	// The eviction callback runs under the LRU's lock and must not call back into it.
	s.cache = expirable.NewLRU[string, *Session](cfg.MaxSessions, func(string, *Session) {
		s.report(s.live.Add(-1))
	}, cfg.IdleTTL)
	return s
}

// Get returns the session for id, creating it if needed. An empty id gets
// a fresh random one. Get refreshes the session's idle timer.
func (s *Store) Get(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.cache.Get(id); ok {
		s.cache.Add(id, sess)
		return sess
	}
	sess := New(id, s.maxChars)
	s.live.Add(1)
	s.cache.Add(id, sess)
	s.report(s.live.Load())
	return sess
}

// Peek returns the session for id without creating or refreshing it.
func (s *Store) Peek(id string) (*Session, bool) {
	return s.cache.Peek(id)
}

// Remove forgets the session for id.
func (s *Store) Remove(id string) bool {
	return s.cache.Remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) report(n int64) {
	if s.onChange != nil {
		s.onChange(int(n))
	}
}

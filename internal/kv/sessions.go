package kv

import (
	"sync"
	"time"
)

// Sessions hands out the session-scoped store for a session id.
type Sessions interface {
	Session(id string) Store
}

// MemorySessions keeps one Memory store per session. Sessions idle for
// longer than ttl are dropped together with any keys they held.
type MemorySessions struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*memorySession
}

type memorySession struct {
	store    *Memory
	lastSeen time.Time
}

// NewMemorySessions creates a registry; ttl <= 0 disables expiry.
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*memorySession),
	}
}

func (s *MemorySessions) Session(id string) Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	e, ok := s.entries[id]
	if !ok {
		e = &memorySession{store: NewMemory()}
		s.entries[id] = e
	}
	e.lastSeen = now
	return e.store
}

// Len reports the number of live sessions.
func (s *MemorySessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemorySessions) sweep(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.entries, id)
		}
	}
}

// RedisSessions namespaces a shared Redis connection per session; keys
// expire ttl after they were last read or written.
type RedisSessions struct {
	base *RedisStore
	ttl  time.Duration
}

func NewRedisSessions(base *RedisStore, ttl time.Duration) *RedisSessions {
	return &RedisSessions{base: base, ttl: ttl}
}

func (s *RedisSessions) Session(id string) Store {
	return s.base.Namespace("session:"+id+":", s.ttl)
}

// SingleSession returns the same store for every id. The CLI uses it: one
// process is one session.
type SingleSession struct {
	Store Store
}

func (s SingleSession) Session(string) Store {
	return s.Store
}

// Package ratelimit holds the process-wide rate-limit state as explicit
// components: a per-client sliding-window Limiter and a minimum-interval
// Throttle for outbound calls. Both take an injectable clock.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Store keeps request timestamps per key.
type Store interface {
	// Hits returns the timestamps recorded for key at or after since,
	// pruning older ones.
	Hits(key string, since time.Time) []time.Time
	Record(key string, at time.Time)
	// Sweep drops keys with no hits at or after since.
	Sweep(since time.Time) int
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (s *MemoryStore) Hits(key string, since time.Time) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := prune(s.hits[key], since)
	if len(kept) == 0 {
		delete(s.hits, key)
		return nil
	}
	s.hits[key] = kept
	return append([]time.Time(nil), kept...)
}

func (s *MemoryStore) Record(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key] = append(s.hits[key], at)
}

func (s *MemoryStore) Sweep(since time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, v := range s.hits {
		if kept := prune(v, since); len(kept) == 0 {
			delete(s.hits, k)
			removed++
		} else {
			s.hits[k] = kept
		}
	}
	return removed
}

func prune(ts []time.Time, since time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(since) {
		i++
	}
	return ts[i:]
}

// Decision is the outcome of Limiter.Allow. A rejection is normal control
// flow, not an error; RetryAfter tells the client when to come back.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows at most Limit requests per key within Window.
type Limiter struct {
	limit  int
	window time.Duration
	clock  clockwork.Clock
	store  Store
	mu     sync.Mutex
}

// NewLimiter builds a limiter. A nil clock means the real clock and a nil
// store means a fresh MemoryStore.
func NewLimiter(limit int, window time.Duration, clock clockwork.Clock, store Store) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{limit: limit, window: window, clock: clock, store: store}
}

// Allow records a request for key if it fits in the window.
func (l *Limiter) Allow(key string) Decision {
	if l.limit <= 0 {
		return Decision{Allowed: true, Remaining: -1}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	hits := l.store.Hits(key, now.Add(-l.window))
	if len(hits) >= l.limit {
		retry := hits[0].Add(l.window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	l.store.Record(key, now)
	return Decision{Allowed: true, Remaining: l.limit - len(hits) - 1}
}

// Sweep forgets idle keys; call it periodically.
func (l *Limiter) Sweep() int {
	return l.store.Sweep(l.clock.Now().Add(-l.window))
}

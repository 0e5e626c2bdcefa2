package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a process-local CounterStore for tests and
// single-node deployments. A single mutex makes check-and-increment
// atomic per store.
type memoryStore struct {
	mu           sync.Mutex
	events       map[string][]time.Time
	timeProvider func() time.Time
}

type MemoryStoreOpts struct {
	TimeProvider func() time.Time
}

func NewMemoryStore(opts *MemoryStoreOpts) CounterStore {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &memoryStore{
		events:       make(map[string][]time.Time),
		timeProvider: timeProvider,
	}
}

func (s *memoryStore) Hit(_ context.Context, key string, window time.Duration, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeProvider()
	live := s.prune(key, now, window)

	if len(live) >= limit {
		return false, 0, nil
	}

	live = append(live, now)
	s.events[key] = live

	remaining := limit - len(live)
	return true, remaining, nil
}

func (s *memoryStore) Count(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.prune(key, s.timeProvider(), window)
	return int64(len(live)), nil
}

// prune drops events outside the window and stores the survivors back.
// Caller must hold the lock.
func (s *memoryStore) prune(key string, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	live := s.events[key][:0]
	for _, ts := range s.events[key] {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	if len(live) == 0 {
		delete(s.events, key)
		return nil
	}
	s.events[key] = live
	return live
}

// Package memory provides an in-process visited-set store for tests and
// local development.
package memory

import (
	"context"
	"sync"
	"time"
)

type taskSet struct {
	urls     map[string]struct{}
	deadline time.Time
}

// Store mirrors the Redis visited-set semantics, including TTL expiry
// evaluated against an injectable clock.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*taskSet
	now   func() time.Time
}

// NewStore returns a Store using the wall clock.
func NewStore() *Store {
	return &Store{
		tasks: make(map[string]*taskSet),
		now:   time.Now,
	}
}

// SetClock replaces the store's time source; tests use it to step past TTLs.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the task's set, discarding it first if its TTL has lapsed.
func (s *Store) live(taskID string) *taskSet {
	ts, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	if !ts.deadline.IsZero() && s.now().After(ts.deadline) {
		delete(s.tasks, taskID)
		return nil
	}
	return ts
}

// IsVisited reports membership in the task's live set.
func (s *Store) IsVisited(_ context.Context, taskID, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.live(taskID)
	if ts == nil {
		return false, nil
	}
	_, ok := ts.urls[url]
	return ok, nil
}

// MarkVisited adds url to the task's set, creating the set if needed.
func (s *Store) MarkVisited(_ context.Context, taskID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.live(taskID)
	if ts == nil {
		ts = &taskSet{urls: make(map[string]struct{})}
		s.tasks[taskID] = ts
	}
	ts.urls[url] = struct{}{}
	return nil
}

// VisitedCount returns the live set's cardinality.
func (s *Store) VisitedCount(_ context.Context, taskID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.live(taskID)
	if ts == nil {
		return 0, nil
	}
	return int64(len(ts.urls)), nil
}

// Expire sets the set's deadline relative to the store clock.
func (s *Store) Expire(_ context.Context, taskID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.live(taskID)
	if ts == nil {
		return nil
	}
	ts.deadline = s.now().Add(ttl)
	return nil
}

// Package memory is an in-process archive for tests and local runs.
package memory

import (
	"context"
	"sync"
)

// Object is one stored snapshot.
type Object struct {
	ContentType string
	Data        []byte
}

// Store keeps snapshots in a map keyed by path.
type Store struct {
	mu      sync.Mutex
	objects map[string]Object
}

func NewStore() *Store {
	return &Store{objects: make(map[string]Object)}
}

// Put records the snapshot and returns a mem:// URI.
func (s *Store) Put(_ context.Context, path, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = Object{ContentType: contentType, Data: buf}
	return "mem://" + path, nil
}

// Get returns a stored snapshot.
func (s *Store) Get(path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj, ok
}

// Len reports how many snapshots are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

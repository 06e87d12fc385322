package dedup

import (
	"fmt"
	"os"
	"sync"
)

// KeyedLock provides mutual exclusion by name within one process. It does not
// coordinate across coordinator replicas; duplicate work across replicas is
// accepted because graph writes are idempotent.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLock returns an empty lock table.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*sync.Mutex)}
}

// With runs fn while holding the named lock.
func (l *KeyedLock) With(key string, fn func() error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn()
}

// CrawlLockKey names this process's crawl critical section.
func CrawlLockKey() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s#%d_crawl_lock", host, os.Getpid())
}

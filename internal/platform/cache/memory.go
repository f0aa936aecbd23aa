package cache

import (
	"context"
	"sync"
	"time"
)

const (
	defaultMemoryItems  = 50000
	memorySweepInterval = time.Minute
)

// Memory is an in-process Cache and Counter for local development and
// tests. Expired keys are dropped on access and by a sweep that runs on
// writes at most once per minute. Past maxItems an arbitrary key is evicted.
type Memory struct {
	mu        sync.Mutex
	items     map[string]memItem
	now       func() time.Time
	maxItems  int
	nextSweep time.Time
}

type memItem struct {
	val     []byte
	count   int64
	expires time.Time
}

func NewMemory() *Memory {
	return newMemory(defaultMemoryItems)
}

func newMemory(maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = defaultMemoryItems
	}
	return &Memory{items: make(map[string]memItem), now: time.Now, maxItems: maxItems}
}

// Len counts stored keys, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.live(key)
	if !ok || it.val == nil {
		return nil, ErrMiss
	}
	out := make([]byte, len(it.val))
	copy(out, it.val)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(val))
	copy(cp, val)
	m.admit(key)
	m.items[key] = memItem{val: cp, expires: m.expiry(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.live(key)
	if !ok {
		m.admit(key)
		it = memItem{expires: m.expiry(ttl)}
	}
	it.count++
	m.items[key] = it
	return it.count, nil
}

func (m *Memory) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.live(key)
	if !ok {
		return 0, nil
	}
	return it.count, nil
}

func (m *Memory) live(key string) (memItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memItem{}, false
	}
	if !it.expires.IsZero() && !m.now().Before(it.expires) {
		delete(m.items, key)
		return memItem{}, false
	}
	return it, true
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// admit makes room before key is written. Callers hold mu.
func (m *Memory) admit(key string) {
	if _, exists := m.items[key]; exists {
		return
	}
	now := m.now()
	if !now.Before(m.nextSweep) {
		for k, it := range m.items {
			if !it.expires.IsZero() && !now.Before(it.expires) {
				delete(m.items, k)
			}
		}
		m.nextSweep = now.Add(memorySweepInterval)
	}
	for k := range m.items {
		if len(m.items) < m.maxItems {
			break
		}
		delete(m.items, k)
	}
}

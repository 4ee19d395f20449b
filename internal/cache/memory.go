package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	gens    map[string]uint64
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok && !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(entry.data, dest)
}

func (m *Memory) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	entry, err := m.entry(value, ttl)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) SetIfGeneration(ctx context.Context, key string, value interface{}, ttl time.Duration, prefix string, gen uint64) (bool, error) {
	entry, err := m.entry(value, ttl)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[prefix] != gen {
		return false, nil
	}
	m.entries[key] = entry
	return true, nil
}

func (m *Memory) Generation(ctx context.Context, prefix string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[prefix], nil
}

func (m *Memory) entry(value interface{}, ttl time.Duration) (memoryEntry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return memoryEntry{}, err
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	return entry, nil
}

func (m *Memory) InvalidatePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[prefix]++
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

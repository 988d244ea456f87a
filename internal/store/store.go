// Package store provides the key-value persistence port used for the
// translation cache, history, and user preferences. Values are stored
// JSON-encoded so any implementation can hold them.
package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Well-known keys persisted by the application.
const (
	KeyTranslationCache = "tripglot:translation-cache"
	KeyHistory          = "tripglot:translation-history"
	KeyDarkMode         = "tripglot:dark-mode"
	KeyBookmarks        = "tripglot:bookmarked-activities"
	KeySuggestions      = "tripglot:activity-suggestions"
)

// Store is the persistence port. Get decodes the stored JSON into `into`
// and reports whether the key existed.
type Store interface {
	Get(ctx context.Context, key string, into interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore is an in-memory Store for tests and single-process deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key string, into interface{}) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return true, err
	}
	return true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

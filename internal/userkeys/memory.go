package userkeys

import (
	"context"
	"sync"
)

// MemoryStore keeps user keys in process memory. Single-node use only.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (m *MemoryStore) Set(_ context.Context, userID, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[userID] = apiKey
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.items[userID]
	if !ok {
		return "", ErrNotFound
	}
	return key, nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[userID]; !ok {
		return ErrNotFound
	}
	delete(m.items, userID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Package kvstore provides the durable key-value storage the storefront session
// keeps its cart snapshot in. Implementations are synchronous and best-effort:
// there is no transactional guarantee against a process dying mid-write.
package kvstore

import (
	"context"
	"sync"
)

// Store is a get/set/delete capability over string keys.
// Each storefront session uses a single key.
type Store interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store for tests and ephemeral sessions.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Verify implementations satisfy Store at compile time.
var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
	_ Store = (*Redis)(nil)
)

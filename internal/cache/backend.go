package cache

import (
	"context"
	"sync"
)

// Backend is a persisted string-keyed byte store. Get returns ErrNotFound for
// a missing key; Delete of a missing key succeeds.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Memory keeps entries in process memory.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{entries: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Close() error { return nil }

// Disabled never stores anything; every lookup is a miss.
type Disabled struct{}

func (Disabled) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }
func (Disabled) Put(context.Context, string, []byte) error   { return nil }
func (Disabled) Delete(context.Context, string) error        { return nil }
func (Disabled) Close() error                                { return nil }

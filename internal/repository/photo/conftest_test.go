package photo

import (
	"context"
	"errors"
	"sync"
)

// memSnapshot is an in-memory Snapshot for tests.
type memSnapshot struct {
	mu       sync.Mutex
	data     []byte
	readErr  error
	writeErr error
	writes   int
}

func (m *memSnapshot) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.data, nil
}

func (m *memSnapshot) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data = append([]byte(nil), data...)
	m.writes++
	return nil
}

func (m *memSnapshot) Location() string { return "memory" }

// mockKV implements the kv consumer interface.
type mockKV struct {
	values map[string][]byte
	getErr error
	setErr error
}

func newMockKV() *mockKV { return &mockKV{values: make(map[string][]byte)} }

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, errKeyNotFoundForTest
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

var errDiskFull = errors.New("disk full")

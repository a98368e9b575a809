// Package prefs persists the small set of client preferences that outlive a
// session.
package prefs

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("preferences store closed")

// Store is a durable string key-value store with typed helpers.
type Store interface {
	GetString(ctx context.Context, key string) (value string, ok bool, err error)
	SetString(ctx context.Context, key, value string) error
	GetBool(ctx context.Context, key string) (value bool, ok bool, err error)
	SetBool(ctx context.Context, key string, value bool) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// parseBool reads a stored flag; anything unparseable counts as absent.
func parseBool(raw string) (bool, bool) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) GetString(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) SetString(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.values[key] = value
	return nil
}

func (m *MemoryStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	raw, ok, err := m.GetString(ctx, key)
	if err != nil || !ok {
		return false, false, err
	}
	v, ok := parseBool(raw)
	return v, ok, nil
}

func (m *MemoryStore) SetBool(ctx context.Context, key string, value bool) error {
	return m.SetString(ctx, key, strconv.FormatBool(value))
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

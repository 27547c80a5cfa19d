package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/obdstream/internal/domain/model"
)

// MemoryStore keeps rows in process memory. It is meant for local runs and
// tests; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   []model.Sample
	nextID int64
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// InsertSample appends a copy of s.
func (m *MemoryStore) InsertSample(_ context.Context, s model.Sample) (id int64, err error) {
	defer observe("insert", time.Now(), &err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("%w: %w", ErrStorage, ErrClosed)
	}
	row := s.Clone()
	row.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, row)
	return row.ID, nil
}

// SelectAll returns copies of every row in insertion order.
func (m *MemoryStore) SelectAll(_ context.Context) (out []model.Sample, err error) {
	defer observe("select", time.Now(), &err)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("%w: %w", ErrStorage, ErrClosed)
	}
	out = make([]model.Sample, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

// DeleteAll drops every row. Ids keep increasing afterwards.
func (m *MemoryStore) DeleteAll(_ context.Context) (n int64, err error) {
	defer observe("delete", time.Now(), &err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("%w: %w", ErrStorage, ErrClosed)
	}
	n = int64(len(m.rows))
	m.rows = nil
	return n, nil
}

// Count returns the number of rows.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, fmt.Errorf("%w: %w", ErrStorage, ErrClosed)
	}
	return len(m.rows), nil
}

// Ping fails only after Close.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: %w", ErrStorage, ErrClosed)
	}
	return nil
}

// Close marks the store closed and releases its rows.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.rows = nil
	return nil
}

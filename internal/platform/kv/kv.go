// Package kv provides the opaque get/set persistence collaborator used for
// the invoice collection and the settings singleton.
package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrUnchanged is returned by an UpdateFunc to leave the value as it is.
var ErrUnchanged = errors.New("kv: unchanged")

// ErrConflict reports an update that kept losing to concurrent writers.
var ErrConflict = errors.New("kv: too many concurrent updates")

// UpdateFunc derives the next value of a key from its current one. It may be
// called more than once when a backend retries.
type UpdateFunc func(current string, exists bool) (string, error)

// Store reads and writes whole text values under fixed keys.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Update runs a read-modify-write of key that no other Update on the
	// same backend can interleave with, including ones from other processes.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the stored value and whether it exists.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

// Set replaces the value stored under key.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Update applies fn under the store lock.
func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.values[key]
	next, err := fn(current, ok)
	if errors.Is(err, ErrUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	m.values[key] = next
	return nil
}

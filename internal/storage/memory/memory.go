// Package memory implements storage.Slots in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/storefront/internal/storage"
)

var _ storage.Slots = (*Slots)(nil)

// Slots keeps slot values in a map. Values are copied on the way in and out.
type Slots struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty in-memory slot store.
func New() *Slots {
	return &Slots{data: make(map[string][]byte)}
}

// Get returns a copy of the slot value or storage.ErrNotFound.
func (s *Slots) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *Slots) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes the slot. Deleting a missing slot is not an error.
func (s *Slots) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Ping always succeeds.
func (s *Slots) Ping(context.Context) error { return nil }

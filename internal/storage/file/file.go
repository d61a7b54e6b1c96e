// Package file implements storage.Slots as one file per slot in a directory.
package file

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/storage"
)

var _ storage.Slots = (*Slots)(nil)

const suffix = ".slot"

// Slots stores each slot in <dir>/<base64url(key)>.slot. Writes go to a
// temporary file that is renamed over the target, so readers never observe
// a partially written value.
type Slots struct {
	dir string
	mu  sync.RWMutex
}

// New creates dir if needed and returns a store rooted there.
func New(dir string) (*Slots, error) {
	if dir == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %s", dir)
	}
	return &Slots{dir: dir}, nil
}

func (s *Slots) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+suffix)
}

// Get reads the slot file. A missing file is storage.ErrNotFound.
func (s *Slots) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "read slot %q", key)
	}
	return data, nil
}

// Set atomically replaces the slot file.
func (s *Slots) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write slot %q", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync slot %q", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close slot %q", key)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return errors.Wrapf(err, "rename slot %q", key)
	}
	return nil
}

// Delete removes the slot file if present.
func (s *Slots) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "delete slot %q", key)
	}
	return nil
}

// Ping checks that the directory is still accessible.
func (s *Slots) Ping(context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return errors.Wrap(err, "stat storage dir")
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/storage"
)

const (
	getSlotSQL = `SELECT value FROM slots WHERE key = $1`

	setSlotSQL = `INSERT INTO slots (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	deleteSlotSQL = `DELETE FROM slots WHERE key = $1`
)

var _ storage.Slots = (*Slots)(nil)

// Slots implements storage.Slots backed by the slots table.
type Slots struct {
	pool *pgxpool.Pool
}

// NewSlots returns a Slots that uses the given pool.
func NewSlots(pool *pgxpool.Pool) *Slots {
	return &Slots{pool: pool}
}

// Get returns the slot value, or storage.ErrNotFound when no row exists.
func (s *Slots) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.pool.QueryRow(ctx, getSlotSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting slot %q: %w", key, err)
	}
	return value, nil
}

// Set upserts the slot value.
func (s *Slots) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, setSlotSQL, key, value); err != nil {
		return fmt.Errorf("setting slot %q: %w", key, err)
	}
	return nil
}

// Delete removes the slot row if present.
func (s *Slots) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteSlotSQL, key); err != nil {
		return fmt.Errorf("deleting slot %q: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Slots) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

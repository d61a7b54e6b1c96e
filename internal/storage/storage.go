// Package storage defines the durable key-value slot store that holds
// per-session state (cart snapshots, selected neighborhood).
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when the slot has never been written or was
// deleted.
var ErrNotFound = errors.New("slot not found")

// Slots is a durable key-value store of opaque byte values.
//
// Implementations must be safe for concurrent use. A Set fully replaces the
// previous value of the slot.
type Slots interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// CartKey returns the slot key holding the cart snapshot of a session.
func CartKey(session string) string { return "cart/" + session }

// NeighborhoodKey returns the slot key holding the selected neighborhood of a
// session.
func NeighborhoodKey(session string) string { return "neighborhood/" + session }

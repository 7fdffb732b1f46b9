// SPDX-License-Identifier: MIT

// Package session defines the session store contract consumed by the request
// layer, plus the memory, redis and badger backends implementing it.
package session

import (
	"context"
)

// Session is a handle to one externally stored session. The handle is owned
// by whoever obtained it from a Store; Close releases the handle only and
// never destroys the stored data.
type Session interface {
	// ID returns the session's identifier.
	ID(ctx context.Context) (string, error)

	// Get fetches the item stored under key. The second return value is
	// false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value under key. The store is the source of truth for the
	// value actually retained; callers re-read after writing.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the item stored under key. Removing a missing key is
	// not an error.
	Remove(ctx context.Context, key string) error

	// Close releases the handle. Operations on a closed handle fail with
	// ErrHandleClosed.
	Close() error
}

// Store creates and looks up sessions.
type Store interface {
	// Open returns a handle to the session with the given id, or
	// ErrNotFound if no such session exists.
	Open(ctx context.Context, id string) (Session, error)

	// Create allocates a new session with a fresh id and returns its handle.
	Create(ctx context.Context) (Session, error)

	// Close releases the store and its underlying resources.
	Close() error
}

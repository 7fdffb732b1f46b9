// SPDX-License-Identifier: MIT

package session

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/icecore/icegate/internal/log"
)

// Context is a per-request view over a shared Store. It is cheap to create
// and is handed to each request so the request can open or create sessions
// without holding the store itself. Closing a Context releases the view
// only; the shared store stays open.
type Context struct {
	store  Store
	logger zerolog.Logger
	closed bool
}

// NewContext returns a request-scoped view over store.
func NewContext(store Store) *Context {
	return &Context{
		store:  store,
		logger: log.WithComponent("session-context"),
	}
}

// OpenSession fetches an existing session by id through the underlying store.
func (c *Context) OpenSession(ctx context.Context, id string) (Session, error) {
	if c.closed {
		return nil, ErrStoreClosed
	}
	return c.store.Open(ctx, id)
}

// CreateSession allocates a new session through the underlying store.
func (c *Context) CreateSession(ctx context.Context) (Session, error) {
	if c.closed {
		return nil, ErrStoreClosed
	}
	return c.store.Create(ctx)
}

// Close releases the view. The shared store is not closed; closing a view
// twice is a no-op.
func (c *Context) Close() error {
	c.closed = true
	return nil
}

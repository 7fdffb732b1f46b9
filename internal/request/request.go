// SPDX-License-Identifier: MIT

// Package request holds the in-memory representation of one inbound HTTP
// request and its lazily attached session state.
package request

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/icecore/icegate/internal/log"
	"github.com/icecore/icegate/internal/session"
)

// itemEntry is one slot of the per-key session item cache. A slot is either
// Present (the store reported a value) or Absent (the store reported none).
// Lookups short-circuit only on Present; Absent slots re-query the store.
type itemEntry struct {
	present bool
	value   string
}

// Request is the mutable aggregate for a single in-flight HTTP request.
//
// A Request has exactly one owner at a time; no method is safe for
// concurrent use. All string and byte returns are views owned by the
// Request, valid until the next mutation or Close.
type Request struct {
	remoteAddr string
	method     string
	uri        string
	body       []byte

	// headers maps lowercased names to values; headerOrder remembers the
	// first-insert position of each normalized key.
	headers     map[string]string
	headerOrder []string

	params map[string]string

	// sctx is a non-owning reference to the shared store; the Request owns
	// only the view's teardown. sess is owned once acquired.
	sctx *session.Context
	sess session.Session

	// sessID memoizes the session identifier; empty means not yet fetched.
	sessID string

	items  map[string]itemEntry
	closed bool
	logger zerolog.Logger
}

// New returns an empty Request in the NoContext state.
func New() *Request {
	return &Request{
		headers: make(map[string]string),
		params:  make(map[string]string),
		items:   make(map[string]itemEntry),
		logger:  log.WithComponent("request"),
	}
}

// SetRemoteAddr records the peer address as reported by the transport layer.
func (r *Request) SetRemoteAddr(addr string) { r.remoteAddr = addr }

// SetMethod records the HTTP method verbatim.
func (r *Request) SetMethod(method string) { r.method = method }

// SetURI records the request URI verbatim.
func (r *Request) SetURI(uri string) { r.uri = uri }

func (r *Request) RemoteAddr() string { return r.remoteAddr }
func (r *Request) Method() string     { return r.method }
func (r *Request) URI() string        { return r.uri }

// SetBody replaces the owned body buffer with a copy of b. The caller keeps
// ownership of b.
func (r *Request) SetBody(b []byte) {
	if len(b) == 0 {
		r.body = nil
		return
	}
	r.body = append([]byte(nil), b...)
}

// Body returns a view of the owned body, nil when empty. The view is valid
// until the next SetBody or Close; callers must not retain or mutate it.
func (r *Request) Body() []byte {
	if len(r.body) == 0 {
		return nil
	}
	return r.body
}

// AddHeader stores value under the lowercased key. Two headers differing
// only in case are the same entry; the last write wins.
func (r *Request) AddHeader(key, value string) {
	lower := strings.ToLower(key)
	if _, exists := r.headers[lower]; !exists {
		r.headerOrder = append(r.headerOrder, lower)
	}
	r.headers[lower] = value
}

// Header returns the value stored under the lowercased key, or the empty
// string when absent. An empty value and a missing key are not
// distinguishable here; callers needing the distinction iterate instead.
func (r *Request) Header(key string) string {
	return r.headers[strings.ToLower(key)]
}

// Headers returns a fresh single-pass cursor over the normalized header
// keys in first-insert order.
func (r *Request) Headers() *HeaderIterator {
	return &HeaderIterator{req: r}
}

// AddParam stores a query or route parameter. Keys are case-sensitive and
// the last write wins.
func (r *Request) AddParam(key, value string) {
	r.params[key] = value
}

// Param returns the parameter stored under key, or the empty string when
// absent.
func (r *Request) Param(key string) string {
	return r.params[key]
}

// BindContext attaches the request-scoped session context. Later calls
// replace the reference; the previous view is not torn down, matching the
// replace-only contract of the transport layer.
func (r *Request) BindContext(sctx *session.Context) {
	r.sctx = sctx
}

// LoadSession fetches an existing session by id through the bound context.
// It returns false when no context is bound or a session is already
// attached; a failed store lookup is logged, leaves no session attached and
// still returns true, so false always means a usage error.
func (r *Request) LoadSession(ctx context.Context, id string) bool {
	if r.closed || r.sctx == nil || r.sess != nil {
		return false
	}
	sess, err := r.sctx.OpenSession(ctx, id)
	if err != nil {
		r.logger.Warn().Err(err).Str(log.FieldSessionID, id).Msg("session lookup failed")
		return true
	}
	r.sess = sess
	return true
}

// CreateSession allocates a new session through the bound context. It does
// nothing when no context is bound or a session is already attached.
func (r *Request) CreateSession(ctx context.Context) {
	if r.closed || r.sctx == nil || r.sess != nil {
		return
	}
	sess, err := r.sctx.CreateSession(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("session create failed")
		return
	}
	r.sess = sess
}

// HasSession reports whether a session is attached.
func (r *Request) HasSession() bool {
	return r.sess != nil
}

// SessionID returns the attached session's identifier, fetching it from the
// store on the first call only. It returns false when no session is
// attached.
func (r *Request) SessionID(ctx context.Context) (string, bool) {
	if r.sess == nil {
		return "", false
	}
	if r.sessID == "" {
		id, err := r.sess.ID(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("session id fetch failed")
			return "", false
		}
		r.sessID = id
	}
	return r.sessID, true
}

// SessionItem returns the session item stored under key. A cached Present
// value is returned without a store round-trip; anything else queries the
// store and caches the result, Absent included. An Absent slot does not
// short-circuit, so repeated lookups of a missing key re-query the store.
func (r *Request) SessionItem(ctx context.Context, key string) (string, bool) {
	if r.sess == nil {
		return "", false
	}
	if entry, ok := r.items[key]; ok && entry.present {
		return entry.value, true
	}
	value, present, err := r.sess.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str(log.FieldItemKey, key).Msg("session item fetch failed")
		return "", false
	}
	r.items[key] = itemEntry{present: present, value: value}
	return value, present
}

// SetSessionItem writes value under key and refreshes the cache from the
// store, which stays the source of truth for the value actually retained.
// It does nothing when no session is attached.
func (r *Request) SetSessionItem(ctx context.Context, key, value string) {
	if r.sess == nil {
		return
	}
	delete(r.items, key)
	if err := r.sess.Set(ctx, key, value); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldItemKey, key).Msg("session item write failed")
		return
	}
	stored, present, err := r.sess.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str(log.FieldItemKey, key).Msg("session item refetch failed")
		return
	}
	r.items[key] = itemEntry{present: present, value: stored}
}

// RemoveSessionItem removes key from the store and marks the cache slot
// Absent, but only when a Present value is cached. With no cached value the
// call is a no-op even if the store holds one; callers that need the store
// cleared unconditionally read the item first.
func (r *Request) RemoveSessionItem(ctx context.Context, key string) {
	if r.sess == nil {
		return
	}
	entry, ok := r.items[key]
	if !ok || !entry.present {
		return
	}
	if err := r.sess.Remove(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldItemKey, key).Msg("session item remove failed")
	}
	r.items[key] = itemEntry{present: false}
}

// Close releases everything the Request owns: the session handle, the
// context view and the item cache. It is idempotent; each resource is
// released exactly once and no operation is valid afterwards.
func (r *Request) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.sess != nil {
		if err := r.sess.Close(); err != nil {
			errs = append(errs, err)
		}
		r.sess = nil
	}
	if r.sctx != nil {
		if err := r.sctx.Close(); err != nil {
			errs = append(errs, err)
		}
		r.sctx = nil
	}
	r.items = nil
	r.body = nil
	return errors.Join(errs...)
}

// HeaderIterator is a forward, single-pass cursor over a Request's
// normalized header keys. Each Headers call starts a fresh pass.
type HeaderIterator struct {
	req *Request
	pos int
}

// Next returns the next normalized header key, or ok=false past the end.
func (it *HeaderIterator) Next() (key string, ok bool) {
	if it.req == nil || it.pos >= len(it.req.headerOrder) {
		return "", false
	}
	key = it.req.headerOrder[it.pos]
	it.pos++
	return key, true
}

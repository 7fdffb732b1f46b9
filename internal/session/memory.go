// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/icecore/icegate/internal/log"
	"github.com/icecore/icegate/internal/metrics"
)

// memoryStore keeps sessions in a mutex-guarded map with TTL-based expiry.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryRecord
	ttl      time.Duration
	logger   zerolog.Logger
	janitor  *janitor
	closed   bool
}

type memoryRecord struct {
	items     map[string]string
	expiresAt time.Time
}

func (r *memoryRecord) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && now.After(r.expiresAt)
}

// NewMemoryStore creates an in-memory session store. Sessions expire ttl
// after their last write; expired entries are swept every cleanupInterval.
// A cleanupInterval of zero disables the sweeper.
func NewMemoryStore(ttl, cleanupInterval time.Duration) Store {
	s := &memoryStore{
		sessions: make(map[string]*memoryRecord),
		ttl:      ttl,
		logger:   log.WithComponent("session-memory"),
	}
	if cleanupInterval > 0 {
		s.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go s.janitor.run(s)
	}
	return s
}

func (s *memoryStore) Open(ctx context.Context, id string) (Session, error) {
	start := time.Now()
	err := s.lookup(id)
	metrics.ObserveStoreOp("memory", "open", start, err)
	if err != nil {
		return nil, err
	}
	return &memorySession{store: s, id: id}, nil
}

func (s *memoryStore) Create(ctx context.Context) (Session, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.ObserveStoreOp("memory", "create", start, ErrStoreClosed)
		return nil, ErrStoreClosed
	}

	id := uuid.New().String()
	rec := &memoryRecord{items: make(map[string]string)}
	if s.ttl > 0 {
		rec.expiresAt = time.Now().Add(s.ttl)
	}
	s.sessions[id] = rec
	metrics.ObserveStoreOp("memory", "create", start, nil)
	metrics.SessionsActive.WithLabelValues("memory").Set(float64(len(s.sessions)))

	s.logger.Debug().Str(log.FieldSessionID, id).Msg("session created")
	return &memorySession{store: s, id: id}, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.janitor != nil {
		close(s.janitor.stop)
	}
	s.sessions = nil
	return nil
}

// lookup verifies that id names a live, unexpired session.
func (s *memoryStore) lookup(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	rec, ok := s.sessions[id]
	if !ok || rec.expired(time.Now()) {
		return ErrNotFound
	}
	return nil
}

func (s *memoryStore) getItem(id, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrStoreClosed
	}
	rec, ok := s.sessions[id]
	if !ok || rec.expired(time.Now()) {
		return "", false, ErrNotFound
	}
	v, ok := rec.items[key]
	return v, ok, nil
}

func (s *memoryStore) setItem(id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	rec, ok := s.sessions[id]
	if !ok || rec.expired(time.Now()) {
		return ErrNotFound
	}
	rec.items[key] = value
	if s.ttl > 0 {
		rec.expiresAt = time.Now().Add(s.ttl)
	}
	return nil
}

func (s *memoryStore) removeItem(id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	rec, ok := s.sessions[id]
	if !ok || rec.expired(time.Now()) {
		return ErrNotFound
	}
	delete(rec.items, key)
	return nil
}

// deleteExpired removes all expired sessions. Returns the number removed.
func (s *memoryStore) deleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	now := time.Now()
	count := 0
	for id, rec := range s.sessions {
		if rec.expired(now) {
			delete(s.sessions, id)
			count++
		}
	}
	if count > 0 {
		metrics.SessionsActive.WithLabelValues("memory").Set(float64(len(s.sessions)))
	}
	return count
}

// janitor sweeps expired sessions periodically.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(s *memoryStore) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// memorySession is a handle to one session in a memoryStore.
type memorySession struct {
	store  *memoryStore
	id     string
	closed bool
}

func (m *memorySession) ID(ctx context.Context) (string, error) {
	if m.closed {
		return "", ErrHandleClosed
	}
	start := time.Now()
	metrics.ObserveStoreOp("memory", "id", start, nil)
	return m.id, nil
}

func (m *memorySession) Get(ctx context.Context, key string) (string, bool, error) {
	if m.closed {
		return "", false, ErrHandleClosed
	}
	start := time.Now()
	v, ok, err := m.store.getItem(m.id, key)
	metrics.ObserveStoreOp("memory", "item_get", start, err)
	return v, ok, err
}

func (m *memorySession) Set(ctx context.Context, key, value string) error {
	if m.closed {
		return ErrHandleClosed
	}
	start := time.Now()
	err := m.store.setItem(m.id, key, value)
	metrics.ObserveStoreOp("memory", "item_set", start, err)
	return err
}

func (m *memorySession) Remove(ctx context.Context, key string) error {
	if m.closed {
		return ErrHandleClosed
	}
	start := time.Now()
	err := m.store.removeItem(m.id, key)
	metrics.ObserveStoreOp("memory", "item_remove", start, err)
	return err
}

// Close releases the handle. The session's data stays in the store until it
// expires.
func (m *memorySession) Close() error {
	m.closed = true
	return nil
}

// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/icecore/icegate/internal/log"
	"github.com/icecore/icegate/internal/metrics"
)

// badgerStore keeps each session as a JSON envelope under "sess:<id>".
// Writes go through read-modify-write transactions; TTL is re-armed on
// every write via badger entry TTLs.
type badgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger zerolog.Logger
}

type sessionEnvelope struct {
	Items     map[string]string `json:"items"`
	CreatedAt time.Time         `json:"createdAt"`
}

// OpenBadgerStore creates a badger-backed session store at path. Sessions
// expire ttl after their last write.
func OpenBadgerStore(path string, ttl time.Duration) (Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &badgerStore{
		db:     db,
		ttl:    ttl,
		logger: log.WithComponent("session-badger"),
	}, nil
}

func (s *badgerStore) key(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func (s *badgerStore) Open(ctx context.Context, id string) (Session, error) {
	start := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.key(id))
		return err
	})
	if err == badger.ErrKeyNotFound {
		err = ErrNotFound
	}
	metrics.ObserveStoreOp("badger", "open", start, err)
	if err != nil {
		return nil, err
	}
	return &badgerSession{store: s, id: id}, nil
}

func (s *badgerStore) Create(ctx context.Context) (Session, error) {
	start := time.Now()
	id := uuid.New().String()
	env := sessionEnvelope{
		Items:     make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return s.write(txn, id, &env)
	})
	metrics.ObserveStoreOp("badger", "create", start, err)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Debug().Str(log.FieldSessionID, id).Msg("session created")
	return &badgerSession{store: s, id: id}, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func (s *badgerStore) read(txn *badger.Txn, id string) (*sessionEnvelope, error) {
	item, err := txn.Get(s.key(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var env sessionEnvelope
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &env)
	}); err != nil {
		return nil, err
	}
	if env.Items == nil {
		env.Items = make(map[string]string)
	}
	return &env, nil
}

func (s *badgerStore) write(txn *badger.Txn, id string, env *sessionEnvelope) error {
	buf, err := json.Marshal(env)
	if err != nil {
		return err
	}
	entry := badger.NewEntry(s.key(id), buf)
	if s.ttl > 0 {
		entry = entry.WithTTL(s.ttl)
	}
	return txn.SetEntry(entry)
}

// update applies fn to the session's envelope inside one transaction.
func (s *badgerStore) update(id string, fn func(*sessionEnvelope)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		env, err := s.read(txn, id)
		if err != nil {
			return err
		}
		fn(env)
		return s.write(txn, id, env)
	})
}

// badgerSession is a handle to one session envelope.
type badgerSession struct {
	store  *badgerStore
	id     string
	closed bool
}

func (b *badgerSession) ID(ctx context.Context) (string, error) {
	if b.closed {
		return "", ErrHandleClosed
	}
	start := time.Now()
	metrics.ObserveStoreOp("badger", "id", start, nil)
	return b.id, nil
}

func (b *badgerSession) Get(ctx context.Context, key string) (string, bool, error) {
	if b.closed {
		return "", false, ErrHandleClosed
	}
	start := time.Now()
	var (
		value   string
		present bool
	)
	err := b.store.db.View(func(txn *badger.Txn) error {
		env, err := b.store.read(txn, b.id)
		if err != nil {
			return err
		}
		value, present = env.Items[key]
		return nil
	})
	metrics.ObserveStoreOp("badger", "item_get", start, err)
	if err != nil {
		return "", false, err
	}
	return value, present, nil
}

func (b *badgerSession) Set(ctx context.Context, key, value string) error {
	if b.closed {
		return ErrHandleClosed
	}
	start := time.Now()
	err := b.store.update(b.id, func(env *sessionEnvelope) {
		env.Items[key] = value
	})
	metrics.ObserveStoreOp("badger", "item_set", start, err)
	if err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	return nil
}

func (b *badgerSession) Remove(ctx context.Context, key string) error {
	if b.closed {
		return ErrHandleClosed
	}
	start := time.Now()
	err := b.store.update(b.id, func(env *sessionEnvelope) {
		delete(env.Items, key)
	})
	metrics.ObserveStoreOp("badger", "item_remove", start, err)
	if err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}

// Close releases the handle. The envelope stays in badger until its TTL
// expires.
func (b *badgerSession) Close() error {
	b.closed = true
	return nil
}

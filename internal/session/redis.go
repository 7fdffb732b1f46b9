// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/icecore/icegate/internal/log"
	"github.com/icecore/icegate/internal/metrics"
)

// metaCreatedField marks a session hash as existing even before the first
// item is written. Item keys never collide with it because it is namespaced.
const metaCreatedField = "_meta:created"

const sessionKeyPrefix = "sess:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// redisStore keeps each session as a Redis hash under "sess:<id>".
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed session store. Sessions expire ttl
// after their last write.
func NewRedisStore(config RedisConfig, ttl time.Duration) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("session-redis")
	logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("connected to Redis session store")

	return &redisStore{client: client, ttl: ttl, logger: logger}, nil
}

// newRedisStoreWithClient wires an existing client, for tests.
func newRedisStoreWithClient(client *redis.Client, ttl time.Duration) *redisStore {
	return &redisStore{client: client, ttl: ttl, logger: zerolog.Nop()}
}

func (s *redisStore) key(id string) string {
	return sessionKeyPrefix + id
}

func (s *redisStore) Open(ctx context.Context, id string) (Session, error) {
	start := time.Now()
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err == nil && n == 0 {
		err = ErrNotFound
	}
	metrics.ObserveStoreOp("redis", "open", start, err)
	if err != nil {
		return nil, err
	}
	return &redisSession{store: s, id: id}, nil
}

func (s *redisStore) Create(ctx context.Context) (Session, error) {
	start := time.Now()
	id := uuid.New().String()
	key := s.key(id)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, metaCreatedField, time.Now().UTC().Format(time.RFC3339))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	metrics.ObserveStoreOp("redis", "create", start, err)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Debug().Str(log.FieldSessionID, id).Msg("session created")
	return &redisSession{store: s, id: id}, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// redisSession is a handle to one session hash.
type redisSession struct {
	store  *redisStore
	id     string
	closed bool
}

func (r *redisSession) ID(ctx context.Context) (string, error) {
	if r.closed {
		return "", ErrHandleClosed
	}
	start := time.Now()
	metrics.ObserveStoreOp("redis", "id", start, nil)
	return r.id, nil
}

func (r *redisSession) Get(ctx context.Context, key string) (string, bool, error) {
	if r.closed {
		return "", false, ErrHandleClosed
	}
	start := time.Now()
	v, err := r.store.client.HGet(ctx, r.store.key(r.id), key).Result()
	if err == redis.Nil {
		metrics.ObserveStoreOp("redis", "item_get", start, nil)
		return "", false, nil
	}
	metrics.ObserveStoreOp("redis", "item_get", start, err)
	if err != nil {
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return v, true, nil
}

func (r *redisSession) Set(ctx context.Context, key, value string) error {
	if r.closed {
		return ErrHandleClosed
	}
	start := time.Now()
	hashKey := r.store.key(r.id)

	pipe := r.store.client.TxPipeline()
	pipe.HSet(ctx, hashKey, key, value)
	if r.store.ttl > 0 {
		pipe.Expire(ctx, hashKey, r.store.ttl)
	}
	_, err := pipe.Exec(ctx)
	metrics.ObserveStoreOp("redis", "item_set", start, err)
	if err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	return nil
}

func (r *redisSession) Remove(ctx context.Context, key string) error {
	if r.closed {
		return ErrHandleClosed
	}
	start := time.Now()
	err := r.store.client.HDel(ctx, r.store.key(r.id), key).Err()
	metrics.ObserveStoreOp("redis", "item_remove", start, err)
	if err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}

// Close releases the handle. The session hash stays in Redis until its TTL
// expires.
func (r *redisSession) Close() error {
	r.closed = true
	return nil
}

// SPDX-License-Identifier: MIT

package session

import (
	"fmt"
	"time"
)

// Options selects and configures a store backend.
type Options struct {
	Backend string        // "memory", "redis" or "badger"
	TTL     time.Duration // session lifetime, re-armed on write
	Path    string        // data directory (badger)
	Redis   RedisConfig   // connection settings (redis)

	// CleanupInterval controls the memory backend's expiry sweeper.
	CleanupInterval time.Duration
}

// OpenStore creates a Store for the configured backend.
func OpenStore(opts Options) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		interval := opts.CleanupInterval
		if interval == 0 {
			interval = time.Minute
		}
		return NewMemoryStore(opts.TTL, interval), nil
	case "redis":
		return NewRedisStore(opts.Redis, opts.TTL)
	case "badger":
		return OpenBadgerStore(opts.Path, opts.TTL)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":8686" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Backend = %q", cfg.Store.Backend)
	}
	if cfg.Store.TTL.Std() != 30*time.Minute {
		t.Errorf("TTL = %v", cfg.Store.TTL.Std())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icegate.yaml")
	content := `
listen: ":9999"
store:
  backend: redis
  ttl: 2h
  redis:
    addr: "redis.internal:6379"
    db: 3
rateLimit:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("Backend = %q", cfg.Store.Backend)
	}
	if cfg.Store.TTL.Std() != 2*time.Hour {
		t.Errorf("TTL = %v", cfg.Store.TTL.Std())
	}
	if cfg.Store.Redis.Addr != "redis.internal:6379" || cfg.Store.Redis.DB != 3 {
		t.Errorf("Redis = %+v", cfg.Store.Redis)
	}
	if cfg.Rate.Enabled {
		t.Error("expected rate limiting disabled")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icegate.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9999\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ICEGATE_LISTEN", ":7777")
	t.Setenv("ICEGATE_SESSION_TTL", "45m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":7777" {
		t.Errorf("Listen = %q, env should win", cfg.Listen)
	}
	if cfg.Store.TTL.Std() != 45*time.Minute {
		t.Errorf("TTL = %v", cfg.Store.TTL.Std())
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ICEGATE_STORE_BACKEND", "cassandra")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoad_BadgerRequiresPath(t *testing.T) {
	t.Setenv("ICEGATE_STORE_BACKEND", "badger")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for badger without path")
	}
	t.Setenv("ICEGATE_STORE_PATH", t.TempDir())
	if _, err := Load(""); err != nil {
		t.Fatalf("Load with path failed: %v", err)
	}
}

func TestParseHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("ICEGATE_TEST_INT", "not-a-number")
	if got := ParseInt("ICEGATE_TEST_INT", 42); got != 42 {
		t.Errorf("ParseInt = %d, want 42", got)
	}
	t.Setenv("ICEGATE_TEST_BOOL", "not-a-bool")
	if got := ParseBool("ICEGATE_TEST_BOOL", true); got != true {
		t.Errorf("ParseBool = %v, want true", got)
	}
	t.Setenv("ICEGATE_TEST_DUR", "soon")
	if got := ParseDuration("ICEGATE_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("ParseDuration = %v, want 1m", got)
	}
}

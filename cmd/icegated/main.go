// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/icecore/icegate/internal/config"
	iglog "github.com/icecore/icegate/internal/log"
	"github.com/icecore/icegate/internal/request"
	"github.com/icecore/icegate/internal/session"
	"github.com/icecore/icegate/internal/transport"
	"github.com/icecore/icegate/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	logger := iglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(iglog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	iglog.Configure(iglog.Config{Level: cfg.LogLevel})

	store, err := session.OpenStore(session.Options{
		Backend: cfg.Store.Backend,
		TTL:     cfg.Store.TTL.Std(),
		Path:    cfg.Store.Path,
		Redis: session.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		},
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(iglog.FieldEvent, "store.open_failed").
			Str(iglog.FieldBackend, cfg.Store.Backend).
			Msg("failed to open session store")
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("session store close failed")
		}
	}()

	router := transport.NewRouter(transport.StackConfig{
		EnableMetrics:     true,
		EnableLogging:     true,
		EnableRateLimit:   cfg.Rate.Enabled,
		RateLimitRequests: cfg.Rate.Requests,
		RateLimitWindow:   time.Duration(cfg.Rate.WindowS) * time.Second,
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	mountSessionRoutes(router, store)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str(iglog.FieldEvent, "server.started").
			Str("listen", cfg.Listen).
			Str(iglog.FieldBackend, cfg.Store.Backend).
			Msg("icegated listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Str(iglog.FieldEvent, "server.stopping").Msg("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if *configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, *configPath, func() {
				// Store backend and listen address need a restart; log so
				// operators see the pending change.
				logger.Info().
					Str(iglog.FieldEvent, "config.changed").
					Msg("config file changed on disk, restart to apply")
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("icegated exited with error")
	}
	logger.Info().Str(iglog.FieldEvent, "server.stopped").Msg("icegated stopped")
}

// mountSessionRoutes exposes the session lifecycle over HTTP. Every handler
// works on a transport-owned request aggregate; the session handle and the
// store view are released when the request is closed.
func mountSessionRoutes(router chi.Router, store session.Store) {
	router.Post("/sessions", transport.Endpoint(store, func(ctx context.Context, req *request.Request) *transport.Response {
		req.CreateSession(ctx)
		id, ok := req.SessionID(ctx)
		if !ok {
			return transport.Text(http.StatusInternalServerError, "session creation failed")
		}
		return transport.JSON(http.StatusCreated, map[string]string{"sessionId": id})
	}))

	router.Get("/sessions/{id}/items/{key}", transport.Endpoint(store, func(ctx context.Context, req *request.Request) *transport.Response {
		if !req.LoadSession(ctx, req.Param("id")) || !req.HasSession() {
			return transport.NotFound()
		}
		value, ok := req.SessionItem(ctx, req.Param("key"))
		if !ok {
			return transport.NotFound()
		}
		return transport.Text(http.StatusOK, value)
	}))

	router.Put("/sessions/{id}/items/{key}", transport.Endpoint(store, func(ctx context.Context, req *request.Request) *transport.Response {
		if !req.LoadSession(ctx, req.Param("id")) || !req.HasSession() {
			return transport.NotFound()
		}
		key := req.Param("key")
		req.SetSessionItem(ctx, key, string(req.Body()))
		stored, ok := req.SessionItem(ctx, key)
		if !ok {
			return transport.Text(http.StatusInternalServerError, "write not visible")
		}
		return transport.Text(http.StatusOK, stored)
	}))

	router.Delete("/sessions/{id}/items/{key}", transport.Endpoint(store, func(ctx context.Context, req *request.Request) *transport.Response {
		if !req.LoadSession(ctx, req.Param("id")) || !req.HasSession() {
			return transport.NotFound()
		}
		key := req.Param("key")
		// Removal acts only on a cached value, so populate the cache first.
		if _, ok := req.SessionItem(ctx, key); !ok {
			return transport.NotFound()
		}
		req.RemoveSessionItem(ctx, key)
		return transport.Text(http.StatusNoContent, "")
	}))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/auth/memory"
	"github.com/holomush/recruitauth/internal/auth/postgres"
	authredis "github.com/holomush/recruitauth/internal/auth/redis"
	"github.com/holomush/recruitauth/internal/config"
	"github.com/holomush/recruitauth/internal/store"
	"github.com/holomush/recruitauth/pkg/errutil"
)

// Backend is an opened identity store.
type Backend struct {
	Identities auth.IdentityRepository

	// Ping reports whether the store is reachable.
	Ping func(ctx context.Context) error

	// Close releases connections. Safe to call once.
	Close func()
}

// BackendFactory opens the identity store selected by cfg.
type BackendFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error)

// openBackend connects to the configured store, retrying transient startup
// failures.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory identity store; principals are lost on exit")
		return &Backend{
			Identities: memory.NewIdentityRepository(),
			Ping:       func(context.Context) error { return nil },
			Close:      func() {},
		}, nil

	case config.BackendPostgres:
		opts := store.DefaultConnectOptions()
		opts.Logger = logger
		if cfg.Store.ConnectAttempts > 0 {
			opts.Attempts = cfg.Store.ConnectAttempts
		}
		pool, err := store.Connect(ctx, cfg.Store.DatabaseURL, opts)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Identities: postgres.NewIdentityRepository(pool),
			Ping:       pool.Ping,
			Close:      pool.Close,
		}, nil

	case config.BackendRedis:
		rcfg := authredis.DefaultConfig()
		rcfg.URL = cfg.Store.RedisURL

		attempts := max(cfg.Store.ConnectAttempts, 1)
		backoff := retry.WithMaxRetries(attempts-1,
			retry.WithCappedDuration(5*time.Second, retry.NewExponential(500*time.Millisecond)))

		var repo *authredis.IdentityRepository
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			r, err := authredis.New(ctx, rcfg)
			if err != nil {
				if errutil.Code(err) == "REDIS_CONFIG_INVALID" {
					return err
				}
				logger.WarnContext(ctx, "redis not ready", "error", err)
				return retry.RetryableError(err)
			}
			repo = r
			return nil
		})
		if err != nil {
			return nil, oops.With("operation", "connect to redis").Wrap(err)
		}
		return &Backend{
			Identities: repo,
			Ping:       repo.Ping,
			Close: func() {
				if err := repo.Close(); err != nil {
					logger.Warn("failed to close redis client", "error", err)
				}
			},
		}, nil

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("backend", cfg.Store.Backend).
			Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls how Connect retries a database that is still
// starting.
type ConnectOptions struct {
	// Attempts is the total number of connection attempts. Values below 1
	// mean a single attempt.
	Attempts uint64

	// Backoff is the first retry delay; later delays grow exponentially up
	// to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration

	Logger *slog.Logger
}

// DefaultConnectOptions returns five attempts starting at 500ms.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Attempts:   5,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Logger:     slog.Default(),
	}
}

// Connect opens a pgx pool for dsn and pings it, retrying transient
// failures with exponential backoff.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	attempts := max(opts.Attempts, 1)

	backoff := retry.NewExponential(opts.Backoff)
	if opts.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(attempts-1, backoff)

	var pool *pgxpool.Pool
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("attempt", attempt).Wrap(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			opts.Logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err)
			return retry.RetryableError(oops.Code("DB_CONNECT_FAILED").With("attempt", attempt).Wrap(err))
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.With("operation", "connect to database").With("attempts", attempt).Wrap(err)
	}
	return pool, nil
}

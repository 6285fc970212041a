// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/config"
	"github.com/holomush/recruitauth/internal/httpapi"
	"github.com/holomush/recruitauth/internal/logging"
	"github.com/holomush/recruitauth/internal/observability"
)

const (
	readinessTimeout  = 2 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API",
		Long: `Start the HTTP API serving login, session, password change and
authorization endpoints. Metrics and health probes are served on a
separate listener unless --metrics-addr is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, deps)
		},
	}
}

// newLogger builds the process logger from cfg, writing to the command's
// error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Setup("recruitauth", version, cfg.Log.Format, level, cmd.ErrOrStderr()), nil
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *Deps) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	codec, err := auth.NewCodec([]byte(cfg.Auth.SigningSecret))
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(codec, nil, auth.WithIssuerName(cfg.Auth.Issuer))
	if err != nil {
		return err
	}
	verifier, err := auth.NewVerifier(codec, nil)
	if err != nil {
		return err
	}

	backend, err := deps.BackendFactory(ctx, cfg, logger)
	if err != nil {
		return oops.With("backend", cfg.Store.Backend).Wrap(err)
	}
	defer backend.Close()
	logger.Info("identity store ready", "backend", cfg.Store.Backend)

	service, err := auth.NewService(backend.Identities, auth.NewSaltedHasher(), issuer, auth.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness(backend), logger)
		obsErrs, err := obsServer.Start()
		if err != nil {
			return oops.With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		defer stopObservability(obsServer, logger)
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", logger)
		metrics = obsServer.Metrics()
	}

	router, err := httpapi.NewRouter(httpapi.Config{
		Service:  service,
		Verifier: verifier,
		Policy:   auth.DefaultPolicy(),
		LoginLimiter: httpapi.NewClientLimiter(httpapi.LimiterConfig{
			Rate:  cfg.RateLimit.LoginRPS,
			Burst: cfg.RateLimit.LoginBurst,
		}),
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErrs := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
		}
		close(serveErrs)
	}()

	addr := listener.Addr().String()
	logger.Info("api server listening", "addr", addr)
	cmd.Printf("recruitauth serving on %s\n", addr)
	deps.OnListening(addr)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-serveErrs:
		if ok {
			serveErr = oops.Code("HTTP_SERVE_FAILED").With("addr", addr).Wrap(err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown incomplete", "error", err)
	}
	return serveErr
}

// readiness reports ready while the identity store answers a ping.
func readiness(backend *Backend) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return backend.Ping(ctx) == nil
	}
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("failed to stop observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errs <-chan error, name string, logger *slog.Logger) {
	select {
	case <-ctx.Done():
	case err, ok := <-errs:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			cancel()
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/observability"
)

// Config holds the router's collaborators. Service and Verifier are
// required; a nil Policy means auth.DefaultPolicy, and a nil LoginLimiter
// disables login rate limiting.
type Config struct {
	Service      *auth.Service
	Verifier     *auth.Verifier
	Policy       *auth.Policy
	LoginLimiter *ClientLimiter
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// Router serves the auth endpoints and mounts protected business routes.
type Router struct {
	mux *mux.Router
	h   *handlers
}

// NewRouter builds the router with every auth route registered.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Service == nil {
		return nil, oops.Code("HTTP_ROUTER_INVALID").Errorf("auth service is required")
	}
	if cfg.Verifier == nil {
		return nil, oops.Code("HTTP_ROUTER_INVALID").Errorf("session verifier is required")
	}
	if cfg.Policy == nil {
		cfg.Policy = auth.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &handlers{
		service:  cfg.Service,
		verifier: cfg.Verifier,
		policy:   cfg.Policy,
		limiter:  cfg.LoginLimiter,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}

	r := mux.NewRouter()
	r.Use(logging(cfg.Logger, cfg.Metrics))
	r.Use(recovery(cfg.Logger))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	a := r.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/login/{kind}", h.login).Methods(http.MethodPost)
	a.Handle("/me", h.protect("profile:read", nil, http.HandlerFunc(h.me))).Methods(http.MethodGet)
	a.Handle("/session", h.protect("session:read", nil, http.HandlerFunc(h.session))).Methods(http.MethodGet)
	a.Handle("/password", h.protect("password:change", nil, http.HandlerFunc(h.changePassword))).Methods(http.MethodPost)
	a.Handle("/authorize", h.authenticate(http.HandlerFunc(h.authorize))).Methods(http.MethodPost)
	a.Handle("/coaches", h.protect("coaches:create", nil, http.HandlerFunc(h.createCoach))).Methods(http.MethodPost)
	a.Handle("/coaches/{id}/verify", h.protect("coaches:verify", nil, http.HandlerFunc(h.verifyCoach))).Methods(http.MethodPost)

	return &Router{mux: r, h: h}, nil
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Protect returns middleware that admits only bearers the policy allows to
// perform operation. owner may be nil for operations without an owner.
func (rt *Router) Protect(operation string, owner OwnerFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return rt.h.protect(operation, owner, next)
	}
}

// Handle mounts a business route guarded by operation.
//
//	rt.Handle("/players/{id}", "players:patch", httpapi.PathOwner("id"), h, http.MethodPatch)
func (rt *Router) Handle(path, operation string, owner OwnerFunc, handler http.Handler, methods ...string) {
	route := rt.mux.Handle(path, rt.h.protect(operation, owner, handler))
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/holomush/recruitauth/internal/auth"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// unknownRule labels denials of operations no policy rule matches.
const unknownRule = "unknown"

// OwnerFunc extracts the owner of the resource a request targets. An empty
// result means the resource has no owner.
type OwnerFunc func(r *http.Request) string

// PathOwner returns an OwnerFunc reading the named route variable.
func PathOwner(name string) OwnerFunc {
	return func(r *http.Request) string {
		return mux.Vars(r)[name]
	}
}

// ClaimsFrom returns the verified claims attached by the authentication
// middleware, or nil.
func ClaimsFrom(ctx context.Context) *auth.SessionClaims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.SessionClaims)
	return claims
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *auth.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// The scheme is case-insensitive.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate verifies the bearer token and attaches its claims.
func (h *handlers) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.verifier.Verify(bearerToken(r))
		if err != nil {
			h.metrics.RecordTokenRejection(rejectionReason(err))
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// protect authenticates the request and authorizes operation against the
// policy before calling next.
func (h *handlers) protect(operation string, owner OwnerFunc, next http.Handler) http.Handler {
	authorized := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ownerID string
		if owner != nil {
			ownerID = owner(r)
		}
		if err := h.policy.Authorize(ClaimsFrom(r.Context()), operation, ownerID); err != nil {
			h.recordDenial(operation)
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
	return h.authenticate(authorized)
}

// recordDenial counts a denial under the policy rule operation matched, or
// "unknown" when none did.
func (h *handlers) recordDenial(operation string) {
	label := unknownRule
	if rule, ok := h.policy.Rule(operation); ok {
		label = rule.Pattern
	}
	h.metrics.RecordDenial(label)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/auth"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
}

// principalView is the public projection of a principal. Password digests
// and lockout bookkeeping are never serialized.
type principalView struct {
	ID               string    `json:"id"`
	Kind             auth.Kind `json:"kind"`
	Role             auth.Role `json:"role"`
	Email            string    `json:"email,omitempty"`
	PlayerKey        string    `json:"player_key,omitempty"`
	DisplayName      string    `json:"display_name"`
	School           string    `json:"school,omitempty"`
	SubscriptionTier string    `json:"subscription_tier,omitempty"`
	IsActive         bool      `json:"is_active"`
	IsVerified       bool      `json:"is_verified"`
	CreatedAt        time.Time `json:"created_at"`
}

func viewOf(p *auth.Principal) principalView {
	return principalView{
		ID:               p.ID.String(),
		Kind:             p.Kind,
		Role:             p.Role,
		Email:            p.Email,
		PlayerKey:        p.PlayerKey,
		DisplayName:      p.DisplayName,
		School:           p.School,
		SubscriptionTier: p.SubscriptionTier,
		IsActive:         p.IsActive,
		IsVerified:       p.IsVerified,
		CreatedAt:        p.CreatedAt,
	}
}

// sessionView is the public projection of verified claims.
type sessionView struct {
	Subject   string    `json:"sub"`
	Role      auth.Role `json:"role"`
	Kind      auth.Kind `json:"kind,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	PlayerKey string    `json:"player_key,omitempty"`
	School    string    `json:"school,omitempty"`
	TokenID   string    `json:"jti,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func sessionOf(c *auth.SessionClaims) sessionView {
	return sessionView{
		Subject:   c.Subject,
		Role:      c.Role,
		Kind:      c.Kind,
		Name:      c.Name,
		Email:     c.Email,
		PlayerKey: c.PlayerKey,
		School:    c.School,
		TokenID:   c.ID,
		IssuedAt:  c.IssuedAtTime(),
		ExpiresAt: c.ExpiresAtTime(),
	}
}

// writeJSON writes data with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a single JSON object from the request body into dst,
// rejecting fields dst does not declare.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

// decodeLenientJSON is decodeJSON that ignores undeclared fields.
func decodeLenientJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return oops.Code("HTTP_INVALID_BODY").Public("Invalid request body").Wrap(errors.Join(errBadRequest, err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return oops.Code("HTTP_INVALID_BODY").Public("Invalid request body").Wrapf(errBadRequest, "trailing data after JSON object")
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/observability"
	"github.com/holomush/recruitauth/pkg/errutil"
)

type handlers struct {
	service  *auth.Service
	verifier *auth.Verifier
	policy   *auth.Policy
	limiter  *ClientLimiter
	metrics  *observability.Metrics
	logger   *slog.Logger
}

type loginRequest struct {
	Email     string `json:"email,omitempty"`
	PlayerKey string `json:"player_key,omitempty"`
	Password  string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	TokenType string        `json:"token_type"`
	ExpiresAt time.Time     `json:"expires_at"`
	Principal principalView `json:"principal"`
}

// login handles POST /auth/login/{kind}.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	kind, err := auth.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		writeDetail(w, http.StatusNotFound, msgNotFound)
		return
	}

	if h.limiter != nil && !h.limiter.Allow(h.limiter.ClientKey(r)) {
		h.metrics.RecordLogin(string(kind), observability.OutcomeRateLimited)
		writeDetail(w, http.StatusTooManyRequests, msgTooManyRequests)
		return
	}

	var req loginRequest
	if err := decodeLenientJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	identifier := req.Email
	if kind == auth.KindPlayer {
		identifier = req.PlayerKey
	}

	result, err := h.service.Login(r.Context(), auth.LoginRequest{
		Kind:       kind,
		Identifier: identifier,
		Password:   req.Password,
	})
	if err != nil {
		h.metrics.RecordLogin(string(kind), loginOutcome(err))
		h.writeError(w, r, err)
		return
	}

	h.metrics.RecordLogin(string(kind), observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token.Token,
		TokenType: "bearer",
		ExpiresAt: result.Token.ExpiresAt,
		Principal: viewOf(result.Principal),
	})
}

func loginOutcome(err error) string {
	switch errutil.Code(err) {
	case auth.CodeInvalidCredentials:
		return observability.OutcomeInvalidCredentials
	case auth.CodeAccountLocked:
		return observability.OutcomeLocked
	case auth.CodeAccountInactive:
		return observability.OutcomeInactive
	case auth.CodePendingVerification:
		return observability.OutcomePendingVerification
	default:
		return observability.OutcomeError
	}
}

// me handles GET /auth/me.
func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	subject, err := ClaimsFrom(r.Context()).SubjectID()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	principal, err := h.service.Profile(r.Context(), subject)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(principal))
}

// session handles GET /auth/session.
func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionOf(ClaimsFrom(r.Context())))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// changePassword handles POST /auth/password.
func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	subject, err := ClaimsFrom(r.Context()).SubjectID()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	err = h.service.ChangePassword(r.Context(), subject, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, auth.ErrInvalidCredentials):
		// Authenticated caller with the wrong current password.
		writeDetail(w, http.StatusBadRequest, oops.GetPublic(err, auth.MsgCurrentPasswordWrong))
	default:
		h.writeError(w, r, err)
	}
}

type authorizeRequest struct {
	Operation string `json:"operation"`
	OwnerID   string `json:"owner_id,omitempty"`
}

type authorizeResponse struct {
	Allowed   bool   `json:"allowed"`
	Operation string `json:"operation"`
}

// authorize handles POST /auth/authorize, letting other services ask the
// policy about an operation on behalf of the bearer.
func (h *handlers) authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Operation = strings.TrimSpace(req.Operation)
	if req.Operation == "" {
		writeDetail(w, http.StatusBadRequest, "Operation is required")
		return
	}

	if err := h.policy.Authorize(ClaimsFrom(r.Context()), req.Operation, req.OwnerID); err != nil {
		h.recordDenial(req.Operation)
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{Allowed: true, Operation: req.Operation})
}

// verifyCoach handles POST /auth/coaches/{id}/verify.
func (h *handlers) verifyCoach(w http.ResponseWriter, r *http.Request) {
	id, err := ulid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Coach not found")
		return
	}
	principal, err := h.service.VerifyCoach(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(principal))
}

type createCoachRequest struct {
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	School           string `json:"school"`
	SubscriptionTier string `json:"subscription_tier,omitempty"`
	Password         string `json:"password"`
	Verified         bool   `json:"verified,omitempty"`
}

// createCoach handles POST /auth/coaches.
func (h *handlers) createCoach(w http.ResponseWriter, r *http.Request) {
	var req createCoachRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	verified := req.Verified
	principal, err := h.service.Enroll(r.Context(), auth.Enrollment{
		Kind:             auth.KindCoach,
		Role:             auth.RoleCoach,
		Email:            req.Email,
		DisplayName:      req.DisplayName,
		School:           req.School,
		SubscriptionTier: req.SubscriptionTier,
		Password:         req.Password,
		Verified:         &verified,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(principal))
}

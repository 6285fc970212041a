// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/pkg/errutil"
)

// Fallback public messages.
const (
	msgInternal        = "Internal server error"
	msgTooManyRequests = "Too many requests"
	msgNotFound        = "Not found"
	msgConflict        = "Conflict"
	msgBadRequest      = "Invalid request"
)

// statusOf maps an error to its HTTP status and public detail. Backend
// failures take precedence so a wrapped not-found from a broken store is
// never reported as a client error.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrIdentityLookup):
		return http.StatusInternalServerError, msgInternal
	case auth.IsRejection(err):
		return http.StatusUnauthorized, oops.GetPublic(err, auth.MsgInvalidToken)
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, oops.GetPublic(err, auth.MsgInsufficientRole)
	case errors.Is(err, errBadRequest),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrInvalidPrincipal):
		return http.StatusBadRequest, oops.GetPublic(err, msgBadRequest)
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, oops.GetPublic(err, msgNotFound)
	case errors.Is(err, auth.ErrDuplicate):
		return http.StatusConflict, oops.GetPublic(err, msgConflict)
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// writeError logs err with its internal code and writes the public response.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusOf(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
	} else {
		h.logger.InfoContext(r.Context(), "request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"code", errutil.Code(err))
	}

	writeDetail(w, status, detail)
}

// rejectionReason labels a token rejection for metrics.
func rejectionReason(err error) string {
	switch errutil.Code(err) {
	case auth.CodeMissingToken:
		return "missing"
	case auth.CodeTokenExpired:
		return "expired"
	case auth.CodeInvalidSignature, auth.CodeUnsupportedAlgorithm:
		return "invalid_signature"
	case auth.CodePrincipalNotFound:
		return "unknown_subject"
	default:
		return "malformed"
	}
}

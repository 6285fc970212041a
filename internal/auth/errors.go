// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Sentinel errors. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is and still read the oops code.
var (
	// ErrNotFound is returned when a requested principal does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a principal's login identifier is taken.
	ErrDuplicate = errors.New("duplicate principal")

	ErrMalformedToken              = errors.New("malformed token")
	ErrInvalidEncoding             = fmt.Errorf("%w: invalid segment encoding", ErrMalformedToken)
	ErrInvalidSignature            = errors.New("invalid token signature")
	ErrExpired                     = errors.New("token expired")
	ErrUnsupportedCredentialFormat = errors.New("unsupported credential format")
	ErrInvalidDigest               = errors.New("invalid credential digest")
	ErrUnauthenticated             = errors.New("unauthenticated")
	ErrForbidden                   = errors.New("forbidden")
	ErrInvalidCredentials          = errors.New("invalid credentials")
	ErrIdentityLookup              = errors.New("identity lookup failed")
	ErrMissingSecret               = errors.New("signing secret is not configured")
	ErrInvalidPrincipal            = errors.New("invalid principal")
	ErrInvalidPassword             = errors.New("invalid password")
)

// Error codes attached with oops.Code.
const (
	CodeMalformedToken       = "AUTH_MALFORMED_TOKEN"
	CodeInvalidEncoding      = "AUTH_INVALID_ENCODING"
	CodeUnsupportedAlgorithm = "AUTH_UNSUPPORTED_ALGORITHM"
	CodeInvalidSignature     = "AUTH_INVALID_SIGNATURE"
	CodeTokenExpired         = "AUTH_TOKEN_EXPIRED"
	CodeMissingToken         = "AUTH_MISSING_TOKEN"
	CodeMissingSecret        = "AUTH_MISSING_SECRET"
	CodeUnsupportedDigest    = "AUTH_UNSUPPORTED_DIGEST"
	CodeInvalidDigest        = "AUTH_INVALID_DIGEST"
	CodeEmptyPassword        = "AUTH_EMPTY_PASSWORD"
	CodeWeakPassword         = "AUTH_WEAK_PASSWORD"
	CodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	CodePendingVerification  = "AUTH_PENDING_VERIFICATION"
	CodeAccountInactive      = "AUTH_ACCOUNT_INACTIVE"
	CodeAccountLocked        = "AUTH_ACCOUNT_LOCKED"
	CodeForbidden            = "AUTH_FORBIDDEN"
	CodeNotOwner             = "AUTH_NOT_OWNER"
	CodeUnknownOperation     = "AUTH_UNKNOWN_OPERATION"
	CodeIdentityLookupFailed = "AUTH_IDENTITY_LOOKUP_FAILED"
	CodePrincipalNotFound    = "PRINCIPAL_NOT_FOUND"
	CodePrincipalDuplicate   = "PRINCIPAL_DUPLICATE"
	CodePrincipalInvalid     = "PRINCIPAL_INVALID"
)

// Public messages returned to callers.
const (
	MsgMissingToken         = "Missing token"
	MsgInvalidToken         = "Invalid or expired token"
	MsgInvalidSignature     = "Invalid signature"
	MsgInsufficientRole     = "Insufficient permissions"
	MsgInvalidEmailPassword = "Invalid email or password"
	MsgInvalidKeyPassword   = "Invalid player key or password"
	MsgPendingVerification  = "Account pending verification"
	MsgAccountInactive      = "Account is inactive"
	MsgAccountLocked        = "Account temporarily locked"
	MsgCurrentPasswordWrong = "Current password is incorrect"
)

// ErrMissingBearer is returned when a request carries no bearer token.
var ErrMissingBearer = oops.Code(CodeMissingToken).Public(MsgMissingToken).Wrap(ErrUnauthenticated)

// IsRejection reports whether err means the caller failed to authenticate,
// as opposed to an operational failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidEncoding) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrInvalidCredentials)
}

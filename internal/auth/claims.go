// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionLifetime is the fixed validity window of a session token.
const SessionLifetime = 24 * time.Hour

// SessionClaims is the signed payload of a session token. The registered
// claims carry sub, iat, exp and jti.
type SessionClaims struct {
	Role             Role   `json:"role"`
	Kind             Kind   `json:"kind,omitempty"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	PlayerKey        string `json:"player_key,omitempty"`
	School           string `json:"school,omitempty"`
	SubscriptionTier string `json:"subscription_tier,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID parses the subject as a principal ID.
func (c *SessionClaims) SubjectID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeMalformedToken).
			With("sub", c.Subject).
			Public(MsgInvalidToken).
			Wrap(ErrMalformedToken)
	}
	return id, nil
}

// IssuedAtTime returns iat, or the zero time if absent.
func (c *SessionClaims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns exp, or the zero time if absent.
func (c *SessionClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IsSubject reports whether the token was issued to ownerID.
func (c *SessionClaims) IsSubject(ownerID string) bool {
	return ownerID != "" && c.Subject == ownerID
}

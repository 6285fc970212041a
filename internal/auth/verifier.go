// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/clock"
)

// Verifier checks bearer tokens. It reads only the token, the codec's secret
// and the clock.
type Verifier struct {
	codec *Codec
	clock clock.Clock
}

// NewVerifier creates a Verifier. A nil clock means the system clock.
func NewVerifier(codec *Codec, clk clock.Clock) (*Verifier, error) {
	if codec == nil {
		return nil, oops.Code(CodeMissingSecret).Wrapf(ErrMissingSecret, "verifier requires a codec")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Verifier{codec: codec, clock: clk}, nil
}

// Verify returns the token's claims, or an error wrapping one of
// ErrMalformedToken, ErrInvalidSignature or ErrExpired, checked in that order.
func (v *Verifier) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrMissingBearer
	}

	var claims SessionClaims
	if _, err := v.codec.Verify(token, &claims); err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.Subject == "" {
		return nil, oops.Code(CodeMalformedToken).
			With("has_exp", claims.ExpiresAt != nil).
			With("has_sub", claims.Subject != "").
			Public(MsgInvalidToken).
			Wrapf(ErrMalformedToken, "token is missing required claims")
	}
	if role, err := ParseRole(string(claims.Role)); err != nil || role != claims.Role {
		return nil, oops.Code(CodeMalformedToken).
			With("role", claims.Role).
			Public(MsgInvalidToken).
			Wrapf(ErrMalformedToken, "token carries an unknown role")
	}

	now := v.clock.Now()
	if claims.ExpiresAt.Time.Before(now) {
		return nil, oops.Code(CodeTokenExpired).
			With("exp", claims.ExpiresAt.Time).
			With("subject", claims.Subject).
			Public(MsgInvalidToken).
			Wrap(ErrExpired)
	}

	return &claims, nil
}

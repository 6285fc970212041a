// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/clock"
)

// IssuedToken is a freshly signed session token.
type IssuedToken struct {
	Token     string
	Claims    *SessionClaims
	ExpiresAt time.Time
}

// Issuer builds session claims for authenticated principals and signs them.
// Tokens are self-contained; nothing is persisted.
type Issuer struct {
	codec    *Codec
	clock    clock.Clock
	issuer   string
	newID    func() string
	lifetime time.Duration
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerName sets the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = name
	}
}

// WithTokenIDs replaces the jti generator.
func WithTokenIDs(next func() string) IssuerOption {
	return func(i *Issuer) {
		i.newID = next
	}
}

// NewIssuer creates an Issuer. A nil clock means the system clock.
func NewIssuer(codec *Codec, clk clock.Clock, opts ...IssuerOption) (*Issuer, error) {
	if codec == nil {
		return nil, oops.Code(CodeMissingSecret).Wrapf(ErrMissingSecret, "issuer requires a codec")
	}
	if clk == nil {
		clk = clock.New()
	}
	i := &Issuer{
		codec:    codec,
		clock:    clk,
		newID:    func() string { return ulid.Make().String() },
		lifetime: SessionLifetime,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Claims builds the claim set for p issued at now.
func (i *Issuer) Claims(p *Principal, now time.Time) *SessionClaims {
	now = now.Truncate(time.Second)
	claims := &SessionClaims{
		Role:   p.Role,
		Kind:   p.Kind,
		Name:   p.DisplayName,
		School: p.School,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
			ID:        i.newID(),
		},
	}

	switch p.Kind {
	case KindPlayer:
		claims.PlayerKey = p.PlayerKey
	default:
		claims.Email = p.Email
		claims.SubscriptionTier = p.SubscriptionTier
	}
	return claims
}

// Issue signs a new session token for p valid for SessionLifetime.
func (i *Issuer) Issue(p *Principal) (*IssuedToken, error) {
	if p == nil {
		return nil, oops.Code(CodePrincipalInvalid).Wrapf(ErrInvalidPrincipal, "principal cannot be nil")
	}

	claims := i.Claims(p, i.clock.Now())
	token, err := i.codec.Encode(claims)
	if err != nil {
		return nil, oops.With("subject", claims.Subject).Wrap(err)
	}
	return &IssuedToken{
		Token:     token,
		Claims:    claims,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Kind identifies which class of principal an account belongs to.
type Kind string

// Principal kinds.
const (
	KindStaff  Kind = "staff"
	KindCoach  Kind = "coach"
	KindPlayer Kind = "player"
)

// ParseKind validates a principal kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindStaff, KindCoach, KindPlayer:
		return k, nil
	default:
		return "", oops.Code(CodePrincipalInvalid).
			With("kind", s).
			Wrapf(ErrInvalidPrincipal, "unknown principal kind %q", s)
	}
}

// Display name constraints.
const (
	MaxDisplayNameLength = 120
	MaxEmailLength       = 254
)

// playerKeyRegex matches human-typable player keys: 4 to 32 characters,
// letters, digits and dashes, not starting with a dash.
var playerKeyRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{3,31}$`)

// Principal is an authenticatable account: a staff user, a coach or a player.
// Staff users and coaches log in by email, players by player key.
type Principal struct {
	ID               ulid.ULID
	Kind             Kind
	Role             Role
	Email            string
	PlayerKey        string
	DisplayName      string
	PasswordHash     string
	IsActive         bool
	IsVerified       bool
	School           string
	SubscriptionTier string
	FailedAttempts   int
	LockedUntil      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewStaffUser creates an active staff principal.
func NewStaffUser(email, displayName string, role Role, digest string) (*Principal, error) {
	if !role.IsStaff() {
		return nil, oops.Code(CodePrincipalInvalid).
			With("role", role).
			Wrapf(ErrInvalidPrincipal, "role %q is not a staff role", role)
	}
	p := newPrincipal(KindStaff, role, displayName, digest)
	p.Email = normalizeEmail(email)
	p.IsVerified = true
	return validated(p)
}

// NewCoach creates an active coach that still needs verification by staff.
func NewCoach(email, displayName, school, digest string) (*Principal, error) {
	p := newPrincipal(KindCoach, RoleCoach, displayName, digest)
	p.Email = normalizeEmail(email)
	p.School = strings.TrimSpace(school)
	return validated(p)
}

// NewPlayer creates an active player identified by playerKey.
func NewPlayer(playerKey, displayName, digest string) (*Principal, error) {
	p := newPrincipal(KindPlayer, RolePlayer, displayName, digest)
	p.PlayerKey = strings.TrimSpace(playerKey)
	p.IsVerified = true
	return validated(p)
}

func validated(p *Principal) (*Principal, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPrincipal(kind Kind, role Role, displayName, digest string) *Principal {
	now := time.Now().UTC()
	return &Principal{
		ID:           ulid.Make(),
		Kind:         kind,
		Role:         role,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: digest,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the principal's fields against its kind.
func (p *Principal) Validate() error {
	fail := func(field, msg string) error {
		return oops.Code(CodePrincipalInvalid).
			With("field", field).
			With("kind", p.Kind).
			Wrapf(ErrInvalidPrincipal, "%s", msg)
	}

	if p.PasswordHash == "" {
		return fail("password_hash", "password hash cannot be empty")
	}
	if p.DisplayName == "" {
		return fail("display_name", "display name cannot be empty")
	}
	if len(p.DisplayName) > MaxDisplayNameLength {
		return fail("display_name", "display name is too long")
	}

	switch p.Kind {
	case KindStaff, KindCoach:
		if err := ValidateEmail(p.Email); err != nil {
			return err
		}
		if p.Kind == KindCoach && p.Role != RoleCoach {
			return fail("role", "coach principals must hold the coach role")
		}
		if p.Kind == KindStaff && !p.Role.IsStaff() {
			return fail("role", "staff principals must hold a staff role")
		}
	case KindPlayer:
		if err := ValidatePlayerKey(p.PlayerKey); err != nil {
			return err
		}
		if p.Role != RolePlayer {
			return fail("role", "player principals must hold the player role")
		}
	default:
		return fail("kind", "unknown principal kind")
	}
	return nil
}

// Clone returns a deep copy of p.
func (p *Principal) Clone() *Principal {
	c := *p
	if p.LockedUntil != nil {
		until := *p.LockedUntil
		c.LockedUntil = &until
	}
	return &c
}

// LoginID returns the identifier the principal logs in with.
func (p *Principal) LoginID() string {
	if p.Kind == KindPlayer {
		return p.PlayerKey
	}
	return p.Email
}

// IsLocked returns true if the principal is locked out at now.
func (p *Principal) IsLocked(now time.Time) bool {
	return IsLockedOut(p.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets lockout if threshold reached.
func (p *Principal) RecordFailure(now time.Time) {
	p.FailedAttempts++
	p.LockedUntil = ComputeLockoutTime(p.FailedAttempts, now)
	p.UpdatedAt = now
}

// RecordSuccess resets failure counter and lockout.
func (p *Principal) RecordSuccess(now time.Time) {
	p.FailedAttempts, p.LockedUntil = ResetOnSuccess()
	p.UpdatedAt = now
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodePrincipalInvalid).
			With("field", "email").
			Wrapf(ErrInvalidPrincipal, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodePrincipalInvalid).
			With("field", "email").
			With("max", MaxEmailLength).
			Wrapf(ErrInvalidPrincipal, "email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodePrincipalInvalid).
			With("field", "email").
			Wrapf(ErrInvalidPrincipal, "email %q is not a valid address", email)
	}
	return nil
}

// ValidatePlayerKey checks a player key against the allowed shape.
func ValidatePlayerKey(key string) error {
	if !playerKeyRegex.MatchString(key) {
		return oops.Code(CodePrincipalInvalid).
			With("field", "player_key").
			Wrapf(ErrInvalidPrincipal, "player key must be 4-32 letters, digits or dashes")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IdentityRepository resolves and persists principals. Implementations must
// make a password change visible to the next lookup.
type IdentityRepository interface {
	// Create stores a new principal. Returns ErrDuplicate if the login
	// identifier is already taken.
	Create(ctx context.Context, p *Principal) error

	// GetByID retrieves a principal by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Principal, error)

	// GetByEmail retrieves a staff user or coach by email (case-insensitive).
	GetByEmail(ctx context.Context, kind Kind, email string) (*Principal, error)

	// GetByPlayerKey retrieves a player by key (case-insensitive).
	GetByPlayerKey(ctx context.Context, key string) (*Principal, error)

	// Update replaces every mutable field of an existing principal.
	Update(ctx context.Context, p *Principal) error

	// UpdatePassword atomically replaces only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error

	// ReplacePasswordHash replaces the password hash only while the stored
	// value still equals current, and reports whether it did.
	ReplacePasswordHash(ctx context.Context, id ulid.ULID, current, replacement string) (bool, error)

	// RecordLoginAttempt stores the failure counter and lockout expiry
	// without touching any other field.
	RecordLoginAttempt(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error

	// SetVerified marks a principal as verified.
	SetVerified(ctx context.Context, id ulid.ULID) error

	// Delete removes a principal.
	Delete(ctx context.Context, id ulid.ULID) error
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements auth.IdentityRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repository needs.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const principalColumns = `
	id, kind, role, email, player_key, display_name, password_hash,
	is_active, is_verified, school, subscription_tier,
	failed_attempts, locked_until, created_at, updated_at`

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool poolIface
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool poolIface) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Create stores a new principal.
func (r *IdentityRepository) Create(ctx context.Context, p *auth.Principal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO principals (`+principalColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		p.ID.String(),
		string(p.Kind),
		string(p.Role),
		nullable(p.Email),
		nullable(p.PlayerKey),
		p.DisplayName,
		p.PasswordHash,
		p.IsActive,
		p.IsVerified,
		p.School,
		p.SubscriptionTier,
		p.FailedAttempts,
		p.LockedUntil,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(auth.CodePrincipalDuplicate).
				With("login_id", p.LoginID()).
				With("kind", p.Kind).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("PRINCIPAL_CREATE_FAILED").
			With("operation", "insert principal").
			With("id", p.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a principal by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+principalColumns+`
		FROM principals
		WHERE id = $1
	`, id.String())

	return r.get(row, "get principal by id", "id", id.String())
}

// GetByEmail retrieves a staff user or coach by email (case-insensitive).
func (r *IdentityRepository) GetByEmail(ctx context.Context, kind auth.Kind, email string) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+principalColumns+`
		FROM principals
		WHERE kind = $1 AND LOWER(email) = LOWER($2)
	`, string(kind), email)

	return r.get(row, "get principal by email", "email", email)
}

// GetByPlayerKey retrieves a player by key (case-insensitive).
func (r *IdentityRepository) GetByPlayerKey(ctx context.Context, key string) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+principalColumns+`
		FROM principals
		WHERE kind = 'player' AND LOWER(player_key) = LOWER($1)
	`, key)

	return r.get(row, "get principal by player key", "player_key", key)
}

// Update replaces every mutable field of an existing principal.
func (r *IdentityRepository) Update(ctx context.Context, p *auth.Principal) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET
			role = $2,
			email = $3,
			player_key = $4,
			display_name = $5,
			password_hash = $6,
			is_active = $7,
			is_verified = $8,
			school = $9,
			subscription_tier = $10,
			failed_attempts = $11,
			locked_until = $12,
			updated_at = $13
		WHERE id = $1
	`,
		p.ID.String(),
		string(p.Role),
		nullable(p.Email),
		nullable(p.PlayerKey),
		p.DisplayName,
		p.PasswordHash,
		p.IsActive,
		p.IsVerified,
		p.School,
		p.SubscriptionTier,
		p.FailedAttempts,
		p.LockedUntil,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(auth.CodePrincipalDuplicate).
				With("login_id", p.LoginID()).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", "update principal").
			With("id", p.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", p.ID.String())
	}
	return nil
}

// UpdatePassword replaces only the password hash.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), digest, time.Now().UTC())
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id.String())
	}
	return nil
}

// ReplacePasswordHash swaps the digest only while the stored one still equals
// current. A missing row and a concurrent change both report false.
func (r *IdentityRepository) ReplacePasswordHash(ctx context.Context, id ulid.ULID, current, replacement string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET password_hash = $3, updated_at = $4
		WHERE id = $1 AND password_hash = $2
	`, id.String(), current, replacement, time.Now().UTC())
	if err != nil {
		return false, oops.Code("PRINCIPAL_REPLACE_PASSWORD_FAILED").
			With("operation", "replace password hash").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// RecordLoginAttempt stores the failure counter and lockout expiry.
func (r *IdentityRepository) RecordLoginAttempt(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET failed_attempts = $2, locked_until = $3, updated_at = $4
		WHERE id = $1
	`, id.String(), failedAttempts, lockedUntil, time.Now().UTC())
	if err != nil {
		return oops.Code("PRINCIPAL_RECORD_ATTEMPT_FAILED").
			With("operation", "record login attempt").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id.String())
	}
	return nil
}

// SetVerified marks a principal as verified.
func (r *IdentityRepository) SetVerified(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET is_verified = TRUE, updated_at = $2
		WHERE id = $1
	`, id.String(), time.Now().UTC())
	if err != nil {
		return oops.Code("PRINCIPAL_SET_VERIFIED_FAILED").
			With("operation", "set verified").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id.String())
	}
	return nil
}

// Delete removes a principal.
func (r *IdentityRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM principals WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("PRINCIPAL_DELETE_FAILED").
			With("operation", "delete principal").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id.String())
	}
	return nil
}

func (r *IdentityRepository) get(row pgx.Row, operation, field, value string) (*auth.Principal, error) {
	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(field, value)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_QUERY_FAILED").
			With("operation", operation).
			With(field, value).
			Wrap(err)
	}
	return p, nil
}

// scanPrincipal scans a single row into a Principal.
// Callers are responsible for handling pgx.ErrNoRows.
func scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var (
		idStr            string
		kind             string
		role             string
		email            *string
		playerKey        *string
		displayName      string
		passwordHash     string
		isActive         bool
		isVerified       bool
		school           string
		subscriptionTier string
		failedAttempts   int
		lockedUntil      *time.Time
		createdAt        time.Time
		updatedAt        time.Time
	)

	err := row.Scan(
		&idStr,
		&kind,
		&role,
		&email,
		&playerKey,
		&displayName,
		&passwordHash,
		&isActive,
		&isVerified,
		&school,
		&subscriptionTier,
		&failedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("PRINCIPAL_SCAN_FAILED").
			With("operation", "scan principal").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").
			With("operation", "parse principal id").
			With("id", idStr).
			Wrap(err)
	}
	parsedKind, err := auth.ParseKind(kind)
	if err != nil {
		return nil, oops.With("id", idStr).Wrap(err)
	}
	parsedRole, err := auth.ParseRole(role)
	if err != nil {
		return nil, oops.With("id", idStr).Wrap(err)
	}

	return &auth.Principal{
		ID:               id,
		Kind:             parsedKind,
		Role:             parsedRole,
		Email:            deref(email),
		PlayerKey:        deref(playerKey),
		DisplayName:      displayName,
		PasswordHash:     passwordHash,
		IsActive:         isActive,
		IsVerified:       isVerified,
		School:           school,
		SubscriptionTier: subscriptionTier,
		FailedAttempts:   failedAttempts,
		LockedUntil:      lockedUntil,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFound(field, value string) error {
	return oops.Code(auth.CodePrincipalNotFound).
		With(field, value).
		Wrap(auth.ErrNotFound)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)

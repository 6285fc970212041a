// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis implements auth.IdentityRepository on Redis. Each principal
// is a JSON value; login identifiers are plain string keys pointing at the
// principal ID and are claimed with SETNX.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/auth"
)

// maxWatchRetries bounds optimistic retries of single-record writes.
const maxWatchRetries = 3

// IdentityRepository is a Redis-backed auth.IdentityRepository.
type IdentityRepository struct {
	client *redis.Client
	now    func() time.Time
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*IdentityRepository, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}

	return NewWithClient(client), nil
}

// NewWithClient creates a repository with an existing client.
func NewWithClient(client *redis.Client) *IdentityRepository {
	return &IdentityRepository{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the Redis connection.
func (r *IdentityRepository) Close() error {
	return r.client.Close() //nolint:wrapcheck // close errors are reported as-is
}

// Ping checks the connection. Used by the readiness probe.
func (r *IdentityRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err() //nolint:wrapcheck // readiness reports the raw error
}

// Create stores a new principal and claims its login identifier.
func (r *IdentityRepository) Create(ctx context.Context, p *auth.Principal) error {
	data, err := marshalPrincipal(p)
	if err != nil {
		return err
	}

	idx := indexKey(p)
	if idx != "" {
		claimed, err := r.client.SetNX(ctx, idx, p.ID.String(), 0).Result()
		if err != nil {
			return commandFailed("claim login identifier", p.ID, err)
		}
		if !claimed {
			return duplicate(p)
		}
	}

	created, err := r.client.SetNX(ctx, principalKey(p.ID), data, 0).Result()
	if err != nil || !created {
		if idx != "" {
			_ = r.client.Del(ctx, idx).Err()
		}
		if err != nil {
			return commandFailed("store principal", p.ID, err)
		}
		return duplicate(p)
	}
	return nil
}

// GetByID retrieves a principal by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	data, err := r.client.Get(ctx, principalKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("id", id.String())
		}
		return nil, commandFailed("get principal", id, err)
	}
	return unmarshalPrincipal(data)
}

// GetByEmail retrieves a staff user or coach by email (case-insensitive).
func (r *IdentityRepository) GetByEmail(ctx context.Context, kind auth.Kind, email string) (*auth.Principal, error) {
	return r.getByIndex(ctx, emailIndexKey(kind, email), "email", email)
}

// GetByPlayerKey retrieves a player by key (case-insensitive).
func (r *IdentityRepository) GetByPlayerKey(ctx context.Context, key string) (*auth.Principal, error) {
	return r.getByIndex(ctx, playerKeyIndexKey(key), "player_key", key)
}

// Update replaces an existing principal, moving its identifier index if the
// login identifier changed.
func (r *IdentityRepository) Update(ctx context.Context, p *auth.Principal) error {
	old, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	data, err := marshalPrincipal(p)
	if err != nil {
		return err
	}

	oldIdx, newIdx := indexKey(old), indexKey(p)
	if newIdx != oldIdx && newIdx != "" {
		claimed, err := r.client.SetNX(ctx, newIdx, p.ID.String(), 0).Result()
		if err != nil {
			return commandFailed("claim login identifier", p.ID, err)
		}
		if !claimed {
			return duplicate(p)
		}
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, principalKey(p.ID), data, 0)
	if newIdx != oldIdx && oldIdx != "" {
		pipe.Del(ctx, oldIdx)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return commandFailed("update principal", p.ID, err)
	}
	return nil
}

// UpdatePassword replaces only the password hash.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error {
	_, err := r.mutate(ctx, id, "update password", func(p *auth.Principal) bool {
		p.PasswordHash = digest
		return true
	})
	return err
}

// ReplacePasswordHash swaps the digest only while the stored one equals current.
// A missing principal reports false.
func (r *IdentityRepository) ReplacePasswordHash(ctx context.Context, id ulid.ULID, current, replacement string) (bool, error) {
	swapped, err := r.mutate(ctx, id, "replace password hash", func(p *auth.Principal) bool {
		if p.PasswordHash != current {
			return false
		}
		p.PasswordHash = replacement
		return true
	})
	if errors.Is(err, auth.ErrNotFound) {
		return false, nil
	}
	return swapped, err
}

// RecordLoginAttempt stores the failure counter and lockout expiry.
func (r *IdentityRepository) RecordLoginAttempt(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.mutate(ctx, id, "record login attempt", func(p *auth.Principal) bool {
		p.FailedAttempts = failedAttempts
		p.LockedUntil = lockedUntil
		return true
	})
	return err
}

// SetVerified marks a principal as verified.
func (r *IdentityRepository) SetVerified(ctx context.Context, id ulid.ULID) error {
	_, err := r.mutate(ctx, id, "set verified", func(p *auth.Principal) bool {
		p.IsVerified = true
		return true
	})
	return err
}

// mutate applies change to the stored principal under WATCH, retrying when a
// concurrent write aborts the transaction. change reports whether to write.
func (r *IdentityRepository) mutate(ctx context.Context, id ulid.ULID, operation string, change func(*auth.Principal) bool) (bool, error) {
	key := principalKey(id)
	var written bool

	txf := func(tx *redis.Tx) error {
		written = false
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return notFound("id", id.String())
			}
			return err //nolint:wrapcheck // wrapped below
		}
		p, err := unmarshalPrincipal(data)
		if err != nil {
			return err
		}
		if !change(p) {
			return nil
		}
		p.UpdatedAt = r.now()
		updated, err := marshalPrincipal(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err != nil {
			return err //nolint:wrapcheck // wrapped below
		}
		written = true
		return nil
	}

	var err error
	for range maxWatchRetries {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return false, err
		}
		return false, commandFailed(operation, id, err)
	}
	return written, nil
}

// Delete removes a principal and its identifier index.
func (r *IdentityRepository) Delete(ctx context.Context, id ulid.ULID) error {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, principalKey(id))
	if idx := indexKey(p); idx != "" {
		pipe.Del(ctx, idx)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return commandFailed("delete principal", id, err)
	}
	return nil
}

func (r *IdentityRepository) getByIndex(ctx context.Context, idx, field, value string) (*auth.Principal, error) {
	idStr, err := r.client.Get(ctx, idx).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(field, value)
		}
		return nil, oops.Code("PRINCIPAL_QUERY_FAILED").
			With("operation", "resolve login identifier").
			With(field, value).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").
			With("index", idx).
			With("id", idStr).
			Wrap(err)
	}

	p, err := r.GetByID(ctx, id)
	if errors.Is(err, auth.ErrNotFound) {
		// Dangling index entry.
		return nil, notFound(field, value)
	}
	return p, err
}

// record is the stored JSON form of a principal.
type record struct {
	ID               string     `json:"id"`
	Kind             auth.Kind  `json:"kind"`
	Role             auth.Role  `json:"role"`
	Email            string     `json:"email,omitempty"`
	PlayerKey        string     `json:"player_key,omitempty"`
	DisplayName      string     `json:"display_name"`
	PasswordHash     string     `json:"password_hash"`
	IsActive         bool       `json:"is_active"`
	IsVerified       bool       `json:"is_verified"`
	School           string     `json:"school,omitempty"`
	SubscriptionTier string     `json:"subscription_tier,omitempty"`
	FailedAttempts   int        `json:"failed_attempts"`
	LockedUntil      *time.Time `json:"locked_until,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func marshalPrincipal(p *auth.Principal) ([]byte, error) {
	data, err := json.Marshal(record{
		ID:               p.ID.String(),
		Kind:             p.Kind,
		Role:             p.Role,
		Email:            p.Email,
		PlayerKey:        p.PlayerKey,
		DisplayName:      p.DisplayName,
		PasswordHash:     p.PasswordHash,
		IsActive:         p.IsActive,
		IsVerified:       p.IsVerified,
		School:           p.School,
		SubscriptionTier: p.SubscriptionTier,
		FailedAttempts:   p.FailedAttempts,
		LockedUntil:      p.LockedUntil,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	})
	if err != nil {
		return nil, oops.Code("PRINCIPAL_ENCODE_FAILED").With("id", p.ID.String()).Wrap(err)
	}
	return data, nil
}

func unmarshalPrincipal(data []byte) (*auth.Principal, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("PRINCIPAL_DECODE_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").With("id", rec.ID).Wrap(err)
	}
	return &auth.Principal{
		ID:               id,
		Kind:             rec.Kind,
		Role:             rec.Role,
		Email:            rec.Email,
		PlayerKey:        rec.PlayerKey,
		DisplayName:      rec.DisplayName,
		PasswordHash:     rec.PasswordHash,
		IsActive:         rec.IsActive,
		IsVerified:       rec.IsVerified,
		School:           rec.School,
		SubscriptionTier: rec.SubscriptionTier,
		FailedAttempts:   rec.FailedAttempts,
		LockedUntil:      rec.LockedUntil,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}, nil
}

func notFound(field, value string) error {
	return oops.Code(auth.CodePrincipalNotFound).
		With(field, value).
		Wrap(auth.ErrNotFound)
}

func duplicate(p *auth.Principal) error {
	return oops.Code(auth.CodePrincipalDuplicate).
		With("login_id", p.LoginID()).
		With("kind", p.Kind).
		Wrap(auth.ErrDuplicate)
}

func commandFailed(operation string, id ulid.ULID, err error) error {
	return oops.Code("PRINCIPAL_STORE_FAILED").
		With("operation", operation).
		With("id", id.String()).
		Wrap(err)
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)

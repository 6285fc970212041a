// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides an in-process auth.IdentityRepository for tests
// and single-node development.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/auth"
)

type emailKey struct {
	kind  auth.Kind
	email string
}

// IdentityRepository stores principals in maps. Returned principals are
// copies; mutating them has no effect until Update is called.
type IdentityRepository struct {
	mu         sync.RWMutex
	principals map[ulid.ULID]*auth.Principal
	byEmail    map[emailKey]ulid.ULID
	byKey      map[string]ulid.ULID
}

// NewIdentityRepository creates an empty repository.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		principals: make(map[ulid.ULID]*auth.Principal),
		byEmail:    make(map[emailKey]ulid.ULID),
		byKey:      make(map[string]ulid.ULID),
	}
}

// Create stores a new principal.
func (r *IdentityRepository) Create(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.principals[p.ID]; ok {
		return duplicate("id", p.ID.String())
	}
	if err := r.checkIdentifiers(p, ulid.ULID{}); err != nil {
		return err
	}

	r.principals[p.ID] = p.Clone()
	r.index(p)
	return nil
}

// GetByID retrieves a principal by ID.
func (r *IdentityRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id, "id", id.String())
}

// GetByEmail retrieves a principal of kind by email.
func (r *IdentityRepository) GetByEmail(_ context.Context, kind auth.Kind, email string) (*auth.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[emailKey{kind: kind, email: strings.ToLower(email)}]
	if !ok {
		return nil, notFound("email", email)
	}
	return r.get(id, "email", email)
}

// GetByPlayerKey retrieves a player by key.
func (r *IdentityRepository) GetByPlayerKey(_ context.Context, key string) (*auth.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[strings.ToLower(key)]
	if !ok {
		return nil, notFound("player_key", key)
	}
	return r.get(id, "player_key", key)
}

// Update replaces a stored principal.
func (r *IdentityRepository) Update(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.principals[p.ID]
	if !ok {
		return notFound("id", p.ID.String())
	}
	if err := r.checkIdentifiers(p, p.ID); err != nil {
		return err
	}

	r.unindex(old)
	r.principals[p.ID] = p.Clone()
	r.index(p)
	return nil
}

// UpdatePassword replaces the stored digest.
func (r *IdentityRepository) UpdatePassword(_ context.Context, id ulid.ULID, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[id]
	if !ok {
		return notFound("id", id.String())
	}
	p.PasswordHash = digest
	return nil
}

// ReplacePasswordHash swaps the digest only while the stored one equals current.
func (r *IdentityRepository) ReplacePasswordHash(_ context.Context, id ulid.ULID, current, replacement string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[id]
	if !ok || p.PasswordHash != current {
		return false, nil
	}
	p.PasswordHash = replacement
	return true, nil
}

// RecordLoginAttempt stores the failure counter and lockout expiry.
func (r *IdentityRepository) RecordLoginAttempt(_ context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[id]
	if !ok {
		return notFound("id", id.String())
	}
	p.FailedAttempts = failedAttempts
	p.LockedUntil = nil
	if lockedUntil != nil {
		until := *lockedUntil
		p.LockedUntil = &until
	}
	return nil
}

// SetVerified marks a principal as verified.
func (r *IdentityRepository) SetVerified(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[id]
	if !ok {
		return notFound("id", id.String())
	}
	p.IsVerified = true
	return nil
}

// Delete removes a principal.
func (r *IdentityRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[id]
	if !ok {
		return notFound("id", id.String())
	}
	r.unindex(p)
	delete(r.principals, id)
	return nil
}

// Len returns the number of stored principals.
func (r *IdentityRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.principals)
}

func (r *IdentityRepository) get(id ulid.ULID, field, value string) (*auth.Principal, error) {
	p, ok := r.principals[id]
	if !ok {
		return nil, notFound(field, value)
	}
	return p.Clone(), nil
}

// checkIdentifiers fails if another principal than self holds p's login identifier.
func (r *IdentityRepository) checkIdentifiers(p *auth.Principal, self ulid.ULID) error {
	if p.Email != "" {
		if id, ok := r.byEmail[emailKey{kind: p.Kind, email: strings.ToLower(p.Email)}]; ok && id != self {
			return duplicate("email", p.Email)
		}
	}
	if p.PlayerKey != "" {
		if id, ok := r.byKey[strings.ToLower(p.PlayerKey)]; ok && id != self {
			return duplicate("player_key", p.PlayerKey)
		}
	}
	return nil
}

func (r *IdentityRepository) index(p *auth.Principal) {
	if p.Email != "" {
		r.byEmail[emailKey{kind: p.Kind, email: strings.ToLower(p.Email)}] = p.ID
	}
	if p.PlayerKey != "" {
		r.byKey[strings.ToLower(p.PlayerKey)] = p.ID
	}
}

func (r *IdentityRepository) unindex(p *auth.Principal) {
	if p.Email != "" {
		delete(r.byEmail, emailKey{kind: p.Kind, email: strings.ToLower(p.Email)})
	}
	if p.PlayerKey != "" {
		delete(r.byKey, strings.ToLower(p.PlayerKey))
	}
}

func notFound(field, value string) error {
	return oops.Code(auth.CodePrincipalNotFound).
		With(field, value).
		Wrap(auth.ErrNotFound)
}

func duplicate(field, value string) error {
	return oops.Code(auth.CodePrincipalDuplicate).
		With(field, value).
		Wrap(auth.ErrDuplicate)
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)

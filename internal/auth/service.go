// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/recruitauth/internal/clock"
)

// Password constraints for new passwords.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// dummyDigest is verified when no principal matches the login identifier so
// that unknown and known identifiers cost the same. It matches no password.
//
//nolint:gosec // G101: not a credential
const dummyDigest = "AAAAAAAAAAAAAAAAAAAAAA==:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

// LoginRequest is a credential check for one principal kind.
type LoginRequest struct {
	Kind Kind

	// Identifier is an email for staff and coaches, a player key for players.
	Identifier string
	Password   string
}

// LoginResult is a successful login.
type LoginResult struct {
	Principal *Principal
	Token     *IssuedToken
}

// Enrollment describes a principal to create with a plaintext password.
type Enrollment struct {
	Kind             Kind
	Role             Role
	Email            string
	PlayerKey        string
	DisplayName      string
	School           string
	SubscriptionTier string
	Password         string

	// Verified overrides the kind's default verification state when set.
	Verified *bool
}

// Service coordinates login, password change and profile lookups.
type Service struct {
	identities IdentityRepository
	hasher     PasswordHasher
	issuer     *Issuer
	clock      clock.Clock
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the clock used for lockout decisions.
func WithClock(clk clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clk
	}
}

// NewService creates a new Service.
func NewService(identities IdentityRepository, hasher PasswordHasher, issuer *Issuer, opts ...ServiceOption) (*Service, error) {
	if identities == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("identity repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session issuer is required")
	}

	s := &Service{
		identities: identities,
		hasher:     hasher,
		issuer:     issuer,
		clock:      clock.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger cannot be nil")
	}
	if s.clock == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("clock cannot be nil")
	}
	return s, nil
}

// Login checks credentials and issues a session token.
//
// Unknown identifiers, wrong passwords and unverifiable digests all return
// the same AUTH_INVALID_CREDENTIALS error. A locked account returns
// AUTH_ACCOUNT_LOCKED whether or not the password matches, and guesses made
// while locked are not counted. Inactive and pending-verification states are
// only revealed after a correct password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, err
	}
	invalid := invalidCredentials(req.Kind)

	principal, lookupErr := s.lookup(ctx, req.Kind, req.Identifier)

	targetDigest := dummyDigest
	exists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, identityLookupFailure("lookup principal", lookupErr)
		}
	} else {
		targetDigest = principal.PasswordHash
		exists = true
	}

	// Always verify, even for unknown identifiers and locked accounts.
	valid, verifyErr := s.hasher.Verify(req.Password, targetDigest)
	now := s.clock.Now()

	if exists && principal.IsLocked(now) {
		return nil, oops.Code(CodeAccountLocked).
			With("principal_id", principal.ID.String()).
			With("locked_until", principal.LockedUntil).
			Public(MsgAccountLocked).
			Wrapf(ErrUnauthenticated, "account is temporarily locked")
	}
	if verifyErr != nil {
		if exists {
			s.logger.WarnContext(ctx, "stored credential digest cannot be verified",
				"principal_id", principal.ID.String(),
				"kind", principal.Kind,
				"error", verifyErr)
		}
		return nil, invalid
	}

	if !exists || !valid {
		if exists {
			s.recordFailure(ctx, principal, now)
		}
		return nil, invalid
	}

	if !principal.IsActive {
		return nil, oops.Code(CodeAccountInactive).
			With("principal_id", principal.ID.String()).
			Public(MsgAccountInactive).
			Wrapf(ErrUnauthenticated, "account is inactive")
	}
	if principal.Kind == KindCoach && !principal.IsVerified {
		return nil, oops.Code(CodePendingVerification).
			With("principal_id", principal.ID.String()).
			Public(MsgPendingVerification).
			Wrapf(ErrUnauthenticated, "coach account is pending verification")
	}

	s.recordSuccess(ctx, principal, now)
	s.upgradeDigest(ctx, principal, req.Password)

	token, err := s.issuer.Issue(principal)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session token").
			Wrap(err)
	}

	return &LoginResult{Principal: principal, Token: token}, nil
}

// ChangePassword verifies current and replaces the stored digest with a
// digest of next. Tokens already issued stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, subjectID ulid.ULID, current, next string) error {
	if err := ValidateNewPassword(next); err != nil {
		return err
	}
	if current == next {
		return oops.Code(CodeWeakPassword).
			Public("New password must differ from the current password").
			Wrap(ErrInvalidPassword)
	}

	principal, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		return s.subjectLookupFailure("get principal for password change", subjectID, err)
	}

	valid, err := s.hasher.Verify(current, principal.PasswordHash)
	if err != nil {
		s.logger.WarnContext(ctx, "stored credential digest cannot be verified",
			"principal_id", principal.ID.String(),
			"error", err)
	}
	if err != nil || !valid {
		return oops.Code(CodeInvalidCredentials).
			With("principal_id", subjectID.String()).
			Public(MsgCurrentPasswordWrong).
			Wrap(ErrInvalidCredentials)
	}

	digest, err := s.hasher.Hash(next)
	if err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.identities.UpdatePassword(ctx, subjectID, digest); err != nil {
		return s.subjectLookupFailure("update password", subjectID, err)
	}

	s.logger.InfoContext(ctx, "password changed", "principal_id", subjectID.String())
	return nil
}

// Profile returns the stored principal for a verified subject.
func (s *Service) Profile(ctx context.Context, subjectID ulid.ULID) (*Principal, error) {
	principal, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		return nil, s.subjectLookupFailure("get profile", subjectID, err)
	}
	return principal, nil
}

// VerifyCoach marks a coach account as verified so it can log in.
func (s *Service) VerifyCoach(ctx context.Context, coachID ulid.ULID) (*Principal, error) {
	principal, err := s.identities.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodePrincipalNotFound).
				With("coach_id", coachID.String()).
				Public("Coach not found").
				Wrap(err)
		}
		return nil, identityLookupFailure("get coach", err)
	}
	if principal.Kind != KindCoach {
		return nil, oops.Code(CodePrincipalNotFound).
			With("coach_id", coachID.String()).
			With("kind", principal.Kind).
			Public("Coach not found").
			Wrap(ErrNotFound)
	}

	if principal.IsVerified {
		return principal, nil
	}
	if err := s.identities.SetVerified(ctx, coachID); err != nil {
		return nil, identityLookupFailure("verify coach", err)
	}
	principal.IsVerified = true
	principal.UpdatedAt = s.clock.Now()

	s.logger.InfoContext(ctx, "coach verified", "principal_id", coachID.String())
	return principal, nil
}

// Enroll hashes the password and stores a new principal.
func (s *Service) Enroll(ctx context.Context, e Enrollment) (*Principal, error) {
	if err := ValidateNewPassword(e.Password); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(e.Password)
	if err != nil {
		return nil, oops.Code("AUTH_ENROLL_FAILED").With("operation", "hash password").Wrap(err)
	}

	var principal *Principal
	switch e.Kind {
	case KindStaff:
		principal, err = NewStaffUser(e.Email, e.DisplayName, e.Role, digest)
	case KindCoach:
		principal, err = NewCoach(e.Email, e.DisplayName, e.School, digest)
	case KindPlayer:
		principal, err = NewPlayer(e.PlayerKey, e.DisplayName, digest)
	default:
		_, err = ParseKind(string(e.Kind))
	}
	if err != nil {
		return nil, err
	}

	if e.Kind == KindPlayer {
		principal.School = e.School
	}
	principal.SubscriptionTier = e.SubscriptionTier
	if e.Verified != nil {
		principal.IsVerified = *e.Verified
	}

	if err := s.identities.Create(ctx, principal); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.With("login_id", principal.LoginID()).
				Public("An account with this identifier already exists").
				Wrap(err)
		}
		return nil, identityLookupFailure("create principal", err)
	}

	s.logger.InfoContext(ctx, "principal enrolled",
		"principal_id", principal.ID.String(),
		"kind", principal.Kind,
		"role", principal.Role)
	return principal, nil
}

// ValidateNewPassword checks the length constraints for a new password.
func ValidateNewPassword(password string) error {
	if password == "" {
		return oops.Code(CodeEmptyPassword).
			Public("Password cannot be empty").
			Wrap(ErrInvalidPassword)
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return oops.Code(CodeWeakPassword).
			With("min", MinPasswordLength).
			With("max", MaxPasswordLength).
			Public(fmt.Sprintf("Password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)).
			Wrap(ErrInvalidPassword)
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, kind Kind, identifier string) (*Principal, error) {
	var (
		principal *Principal
		err       error
	)
	if kind == KindPlayer {
		principal, err = s.identities.GetByPlayerKey(ctx, identifier)
	} else {
		principal, err = s.identities.GetByEmail(ctx, kind, normalizeEmail(identifier))
	}
	if err != nil {
		return nil, err
	}
	if principal.Kind != kind {
		return nil, ErrNotFound
	}
	return principal, nil
}

func (s *Service) recordFailure(ctx context.Context, principal *Principal, now time.Time) {
	principal.RecordFailure(now)
	err := s.identities.RecordLoginAttempt(ctx, principal.ID, principal.FailedAttempts, principal.LockedUntil)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure",
			"principal_id", principal.ID.String(),
			"failed_attempts", principal.FailedAttempts,
			"error", err)
	}
	if principal.LockedUntil != nil {
		s.logger.WarnContext(ctx, "principal locked out",
			"principal_id", principal.ID.String(),
			"locked_until", principal.LockedUntil.Format(time.RFC3339))
	}
}

// recordSuccess clears the failure counter and lockout if either is set.
func (s *Service) recordSuccess(ctx context.Context, principal *Principal, now time.Time) {
	if principal.FailedAttempts == 0 && principal.LockedUntil == nil {
		return
	}
	principal.RecordSuccess(now)
	if err := s.identities.RecordLoginAttempt(ctx, principal.ID, principal.FailedAttempts, principal.LockedUntil); err != nil {
		s.logger.WarnContext(ctx, "failed to record successful login",
			"principal_id", principal.ID.String(),
			"error", err)
	}
}

// upgradeDigest rehashes a legacy digest. The write only lands if the stored
// digest is still the one that was just verified.
func (s *Service) upgradeDigest(ctx context.Context, principal *Principal, password string) {
	if !s.hasher.NeedsUpgrade(principal.PasswordHash) {
		return
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to rehash legacy digest",
			"principal_id", principal.ID.String(),
			"error", err)
		return
	}
	swapped, err := s.identities.ReplacePasswordHash(ctx, principal.ID, principal.PasswordHash, digest)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to store rehashed digest",
			"principal_id", principal.ID.String(),
			"error", err)
		return
	}
	if swapped {
		principal.PasswordHash = digest
	}
}

// subjectLookupFailure maps a repository error for a token subject. A
// subject that no longer exists is an authentication failure.
func (s *Service) subjectLookupFailure(operation string, subjectID ulid.ULID, err error) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodePrincipalNotFound).
			With("operation", operation).
			With("subject", subjectID.String()).
			Public(MsgInvalidToken).
			Wrap(fmt.Errorf("%w: %w", ErrUnauthenticated, err))
	}
	return identityLookupFailure(operation, err)
}

func identityLookupFailure(operation string, err error) error {
	return oops.Code(CodeIdentityLookupFailed).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrIdentityLookup, err))
}

func invalidCredentials(kind Kind) error {
	msg := MsgInvalidEmailPassword
	if kind == KindPlayer {
		msg = MsgInvalidKeyPassword
	}
	return oops.Code(CodeInvalidCredentials).
		With("kind", kind).
		Public(msg).
		Wrap(ErrInvalidCredentials)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/holomush/recruitauth/internal/auth"
)

type IdentityRepositorySuite struct {
	suite.Suite
	mini *miniredis.Miniredis
	repo *IdentityRepository
	ctx  context.Context
}

func TestIdentityRepositorySuite(t *testing.T) {
	suite.Run(t, new(IdentityRepositorySuite))
}

func (s *IdentityRepositorySuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.repo = NewWithClient(client)
	s.ctx = context.Background()
}

func (s *IdentityRepositorySuite) TearDownTest() {
	if s.repo != nil {
		_ = s.repo.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *IdentityRepositorySuite) coach(email string) *auth.Principal {
	p, err := auth.NewCoach(email, "Casey", "Lincoln High", "digest")
	s.Require().NoError(err)
	return p
}

func (s *IdentityRepositorySuite) player(key string) *auth.Principal {
	p, err := auth.NewPlayer(key, "Pat", "digest")
	s.Require().NoError(err)
	return p
}

func (s *IdentityRepositorySuite) TestCreateAndGetByEmail() {
	coach := s.coach("coach@school.edu")
	locked := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	coach.LockedUntil = &locked
	coach.SubscriptionTier = "team"
	s.Require().NoError(s.repo.Create(s.ctx, coach))

	s.True(s.mini.Exists(principalKey(coach.ID)))
	idx, err := s.mini.Get("recruitauth:idx:email:coach:coach@school.edu")
	s.Require().NoError(err)
	s.Equal(coach.ID.String(), idx)

	got, err := s.repo.GetByEmail(s.ctx, auth.KindCoach, "Coach@School.EDU")
	s.Require().NoError(err)
	s.Equal(coach.ID, got.ID)
	s.Equal(auth.RoleCoach, got.Role)
	s.Equal("team", got.SubscriptionTier)
	s.Require().NotNil(got.LockedUntil)
	s.True(locked.Equal(*got.LockedUntil))

	_, err = s.repo.GetByEmail(s.ctx, auth.KindStaff, "coach@school.edu")
	s.ErrorIs(err, auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestGetByPlayerKey() {
	player := s.player("PK-7777")
	s.Require().NoError(s.repo.Create(s.ctx, player))

	got, err := s.repo.GetByPlayerKey(s.ctx, "pk-7777")
	s.Require().NoError(err)
	s.Equal("PK-7777", got.PlayerKey)

	_, err = s.repo.GetByPlayerKey(s.ctx, "PK-0000")
	s.ErrorIs(err, auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestCreateDuplicate() {
	s.Require().NoError(s.repo.Create(s.ctx, s.coach("dup@school.edu")))

	err := s.repo.Create(s.ctx, s.coach("DUP@school.edu"))
	s.ErrorIs(err, auth.ErrDuplicate)

	// The losing principal's record is never written.
	keys := s.mini.Keys()
	s.Len(keys, 2)
}

func (s *IdentityRepositorySuite) TestGetByIDNotFound() {
	_, err := s.repo.GetByID(s.ctx, ulid.Make())
	s.ErrorIs(err, auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestDanglingIndexIsNotFound() {
	s.Require().NoError(s.mini.Set(playerKeyIndexKey("PK-9999"), ulid.Make().String()))

	_, err := s.repo.GetByPlayerKey(s.ctx, "PK-9999")
	s.ErrorIs(err, auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestUpdateMovesIndex() {
	player := s.player("PK-1000")
	s.Require().NoError(s.repo.Create(s.ctx, player))

	player.PlayerKey = "PK-2000"
	player.FailedAttempts = 4
	s.Require().NoError(s.repo.Update(s.ctx, player))

	s.False(s.mini.Exists(playerKeyIndexKey("PK-1000")))
	got, err := s.repo.GetByPlayerKey(s.ctx, "PK-2000")
	s.Require().NoError(err)
	s.Equal(4, got.FailedAttempts)
}

func (s *IdentityRepositorySuite) TestUpdateRejectsTakenIdentifier() {
	a := s.player("PK-AAAA")
	b := s.player("PK-BBBB")
	s.Require().NoError(s.repo.Create(s.ctx, a))
	s.Require().NoError(s.repo.Create(s.ctx, b))

	b.PlayerKey = "pk-aaaa"
	s.ErrorIs(s.repo.Update(s.ctx, b), auth.ErrDuplicate)

	got, err := s.repo.GetByPlayerKey(s.ctx, "PK-AAAA")
	s.Require().NoError(err)
	s.Equal(a.ID, got.ID)
}

func (s *IdentityRepositorySuite) TestUpdateMissing() {
	s.ErrorIs(s.repo.Update(s.ctx, s.player("PK-GONE")), auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestUpdatePassword() {
	coach := s.coach("pw@school.edu")
	s.Require().NoError(s.repo.Create(s.ctx, coach))

	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.repo.now = func() time.Time { return fixed }
	s.Require().NoError(s.repo.UpdatePassword(s.ctx, coach.ID, "new-digest"))

	got, err := s.repo.GetByEmail(s.ctx, auth.KindCoach, "pw@school.edu")
	s.Require().NoError(err)
	s.Equal("new-digest", got.PasswordHash)
	s.True(fixed.Equal(got.UpdatedAt))
	s.Equal(coach.DisplayName, got.DisplayName)

	s.ErrorIs(s.repo.UpdatePassword(s.ctx, ulid.Make(), "x"), auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestReplacePasswordHash() {
	coach := s.coach("cas@school.edu")
	s.Require().NoError(s.repo.Create(s.ctx, coach))
	s.Require().NoError(s.repo.UpdatePassword(s.ctx, coach.ID, "changed"))

	swapped, err := s.repo.ReplacePasswordHash(s.ctx, coach.ID, coach.PasswordHash, "rehashed")
	s.Require().NoError(err)
	s.False(swapped)

	got, err := s.repo.GetByID(s.ctx, coach.ID)
	s.Require().NoError(err)
	s.Equal("changed", got.PasswordHash)

	swapped, err = s.repo.ReplacePasswordHash(s.ctx, coach.ID, "changed", "rehashed")
	s.Require().NoError(err)
	s.True(swapped)

	swapped, err = s.repo.ReplacePasswordHash(s.ctx, ulid.Make(), "a", "b")
	s.Require().NoError(err)
	s.False(swapped)
}

func (s *IdentityRepositorySuite) TestRecordLoginAttemptKeepsDigest() {
	coach := s.coach("attempt@school.edu")
	s.Require().NoError(s.repo.Create(s.ctx, coach))
	s.Require().NoError(s.repo.UpdatePassword(s.ctx, coach.ID, "changed"))

	until := time.Date(2026, 6, 1, 12, 15, 0, 0, time.UTC)
	s.Require().NoError(s.repo.RecordLoginAttempt(s.ctx, coach.ID, 5, &until))

	got, err := s.repo.GetByID(s.ctx, coach.ID)
	s.Require().NoError(err)
	s.Equal("changed", got.PasswordHash)
	s.Equal(5, got.FailedAttempts)
	s.Require().NotNil(got.LockedUntil)
	s.True(until.Equal(*got.LockedUntil))

	s.Require().NoError(s.repo.RecordLoginAttempt(s.ctx, coach.ID, 0, nil))
	got, err = s.repo.GetByID(s.ctx, coach.ID)
	s.Require().NoError(err)
	s.Zero(got.FailedAttempts)
	s.Nil(got.LockedUntil)

	s.ErrorIs(s.repo.RecordLoginAttempt(s.ctx, ulid.Make(), 1, nil), auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestSetVerified() {
	coach := s.coach("verify@school.edu")
	s.Require().NoError(s.repo.Create(s.ctx, coach))

	s.Require().NoError(s.repo.SetVerified(s.ctx, coach.ID))
	got, err := s.repo.GetByID(s.ctx, coach.ID)
	s.Require().NoError(err)
	s.True(got.IsVerified)
	s.Equal(coach.PasswordHash, got.PasswordHash)

	s.ErrorIs(s.repo.SetVerified(s.ctx, ulid.Make()), auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestDelete() {
	coach := s.coach("bye@school.edu")
	s.Require().NoError(s.repo.Create(s.ctx, coach))

	s.Require().NoError(s.repo.Delete(s.ctx, coach.ID))
	s.Empty(s.mini.Keys())
	s.ErrorIs(s.repo.Delete(s.ctx, coach.ID), auth.ErrNotFound)
}

func (s *IdentityRepositorySuite) TestPingAndNew() {
	s.NoError(s.repo.Ping(s.ctx))

	cfg := DefaultConfig()
	cfg.URL = "redis://" + s.mini.Addr() + "/0"
	repo, err := New(s.ctx, cfg)
	s.Require().NoError(err)
	s.NoError(repo.Close())

	cfg.URL = "not-a-url"
	_, err = New(s.ctx, cfg)
	s.Error(err)
}

func (s *IdentityRepositorySuite) TestCorruptRecord() {
	id := ulid.Make()
	s.Require().NoError(s.mini.Set(principalKey(id), "{not json"))

	_, err := s.repo.GetByID(s.ctx, id)
	s.Require().Error(err)
	s.NotErrorIs(err, auth.ErrNotFound)
}

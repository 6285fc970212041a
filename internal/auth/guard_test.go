// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/pkg/errutil"
)

func claimsFor(role auth.Role, subject string) *auth.SessionClaims {
	c := &auth.SessionClaims{Role: role}
	c.Subject = subject
	return c
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		role    auth.Role
		group   auth.RoleGroup
		allowed bool
	}{
		{"admin in admin group", auth.RoleAdmin, auth.GroupAdmin, true},
		{"editor in admin group", auth.RoleEditor, auth.GroupAdmin, true},
		{"viewer not in admin group", auth.RoleViewer, auth.GroupAdmin, false},
		{"coach not in admin group", auth.RoleCoach, auth.GroupAdmin, false},
		{"viewer in staff group", auth.RoleViewer, auth.GroupStaff, true},
		{"player not in staff group", auth.RolePlayer, auth.GroupStaff, false},
		{"coach in coach group", auth.RoleCoach, auth.GroupCoach, true},
		{"player in anyone group", auth.RolePlayer, auth.GroupAnyone, true},
		{"admin not in nobody group", auth.RoleAdmin, auth.GroupNobody, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.Require(claimsFor(tt.role, ulid.Make().String()), tt.group)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrForbidden)
			errutil.AssertErrorCode(t, err, auth.CodeForbidden)
			assert.Equal(t, auth.MsgInsufficientRole, oops.GetPublic(err, ""))
		})
	}

	t.Run("nil claims are unauthenticated", func(t *testing.T) {
		err := auth.Require(nil, auth.GroupAnyone)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})
}

func TestRequireOwner(t *testing.T) {
	me := ulid.Make().String()

	assert.NoError(t, auth.RequireOwner(claimsFor(auth.RolePlayer, me), me, "nope"))

	err := auth.RequireOwner(claimsFor(auth.RolePlayer, me), ulid.Make().String(), "You can only update your own profile")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	errutil.AssertErrorCode(t, err, auth.CodeNotOwner)
	assert.Equal(t, "You can only update your own profile", oops.GetPublic(err, ""))

	t.Run("empty owner never matches", func(t *testing.T) {
		err := auth.RequireOwner(claimsFor(auth.RolePlayer, ""), "", "")
		require.Error(t, err)
		assert.Equal(t, auth.MsgInsufficientRole, oops.GetPublic(err, ""))
	})
}

func TestPolicy_Authorize(t *testing.T) {
	policy := auth.DefaultPolicy()
	playerA := ulid.Make().String()
	playerB := ulid.Make().String()

	tests := []struct {
		name      string
		role      auth.Role
		subject   string
		operation string
		owner     string
		allowed   bool
		detail    string
	}{
		{"coach on admin operation", auth.RoleCoach, "", "coaches:verify", "", false, auth.MsgInsufficientRole},
		{"admin on admin operation", auth.RoleAdmin, "", "coaches:verify", "", true, ""},
		{"editor on admin operation", auth.RoleEditor, "", "projects:delete", "", true, ""},
		{"viewer on admin operation", auth.RoleViewer, "", "projects:create", "", false, auth.MsgInsufficientRole},
		{"viewer lists players", auth.RoleViewer, "", "players:list", "", true, ""},
		{"viewer cannot delete players", auth.RoleViewer, "", "players:delete", "", false, auth.MsgInsufficientRole},
		{"player patches own profile", auth.RolePlayer, playerA, "players:patch", playerA, true, ""},
		{"player patches another profile", auth.RolePlayer, playerA, "players:patch", playerB, false, "You can only update your own profile"},
		{"admin patches any profile", auth.RoleAdmin, "", "players:patch", playerB, true, ""},
		{"coach cannot patch players", auth.RoleCoach, "", "players:patch", playerB, false, auth.MsgInsufficientRole},
		{"coach marks own message read", auth.RoleCoach, playerA, "messages:mark-read", playerA, true, ""},
		{"coach marks other message read", auth.RoleCoach, playerA, "messages:mark-read", playerB, false, "You can only mark your own messages as read"},
		{"admin cannot mark coach messages read", auth.RoleAdmin, "", "messages:mark-read", playerB, false, auth.MsgInsufficientRole},
		{"coach sends message", auth.RoleCoach, "", "messages:send", "", true, ""},
		{"player cannot send message", auth.RolePlayer, "", "messages:send", "", false, auth.MsgInsufficientRole},
		{"player reads own session", auth.RolePlayer, playerA, "session:read", "", true, ""},
		{"unknown operation", auth.RoleAdmin, "", "billing:refund", "", false, auth.MsgInsufficientRole},
		{"glob does not cross separator", auth.RoleAdmin, "", "projects", "", false, auth.MsgInsufficientRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := tt.subject
			if subject == "" {
				subject = ulid.Make().String()
			}
			err := policy.Authorize(claimsFor(tt.role, subject), tt.operation, tt.owner)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrForbidden)
			assert.Equal(t, tt.detail, oops.GetPublic(err, ""))
		})
	}

	t.Run("unknown operation code", func(t *testing.T) {
		err := policy.Authorize(claimsFor(auth.RoleAdmin, playerA), "nothing:here", "")
		errutil.AssertErrorCode(t, err, auth.CodeUnknownOperation)
	})

	t.Run("nil claims", func(t *testing.T) {
		err := policy.Authorize(nil, "session:read", "")
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})
}

func TestPolicy_FirstMatchWins(t *testing.T) {
	policy, err := auth.NewPolicy([]auth.Rule{
		{Pattern: "reports:export", Allow: auth.GroupNobody},
		{Pattern: "reports:*", Allow: auth.GroupAnyone},
	})
	require.NoError(t, err)

	rule, ok := policy.Rule("reports:export")
	require.True(t, ok)
	assert.Equal(t, "reports:export", rule.Pattern)

	assert.Error(t, policy.Authorize(claimsFor(auth.RoleAdmin, "x"), "reports:export", ""))
	assert.NoError(t, policy.Authorize(claimsFor(auth.RolePlayer, "x"), "reports:read", ""))
}

func TestNewPolicy_InvalidPattern(t *testing.T) {
	_, err := auth.NewPolicy([]auth.Rule{{Pattern: "players:[list", Allow: auth.GroupAdmin}})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_OPERATION_PATTERN")
	errutil.AssertErrorContext(t, err, "pattern", "players:[list")
}

func TestRoleGroup(t *testing.T) {
	union := auth.GroupAdmin.Union("admin-or-coach", auth.GroupCoach)
	assert.Equal(t, "admin-or-coach", union.Name())
	assert.ElementsMatch(t, []auth.Role{auth.RoleAdmin, auth.RoleEditor, auth.RoleCoach}, union.Roles())
	assert.False(t, auth.GroupAdmin.Contains(auth.RoleCoach), "union must not mutate its receiver")

	roles := auth.GroupStaff.Roles()
	roles[0] = auth.RolePlayer
	assert.True(t, auth.GroupStaff.Contains(auth.RoleAdmin), "Roles returns a copy")
	assert.Equal(t, "staff", auth.GroupStaff.String())
}

func TestParseRole(t *testing.T) {
	r, err := auth.ParseRole(" Editor ")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEditor, r)
	assert.True(t, r.IsStaff())
	assert.False(t, auth.RoleCoach.IsStaff())

	_, err = auth.ParseRole("root")
	assert.ErrorIs(t, err, auth.ErrInvalidPrincipal)
}

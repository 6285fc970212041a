// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"slices"
	"strings"

	"github.com/samber/oops"
)

// Role is the authorization role carried in a session token.
type Role string

// Known roles.
const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleCoach  Role = "coach"
	RolePlayer Role = "player"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer, RoleCoach, RolePlayer:
		return r, nil
	default:
		return "", oops.Code(CodePrincipalInvalid).
			With("role", s).
			Wrapf(ErrInvalidPrincipal, "unknown role %q", s)
	}
}

// IsStaff reports whether r is one of the staff roles.
func (r Role) IsStaff() bool {
	return GroupStaff.Contains(r)
}

// RoleGroup is a named, immutable set of roles that an operation accepts.
type RoleGroup struct {
	name  string
	roles []Role
}

// Named role groups. Editors are members of GroupAdmin: every operation
// described as admin-only also admits editors. An operation that must
// exclude editors declares its own group.
var (
	GroupAdmin  = NewRoleGroup("admin", RoleAdmin, RoleEditor)
	GroupStaff  = NewRoleGroup("staff", RoleAdmin, RoleEditor, RoleViewer)
	GroupCoach  = NewRoleGroup("coach", RoleCoach)
	GroupPlayer = NewRoleGroup("player", RolePlayer)
	GroupAnyone = NewRoleGroup("anyone", RoleAdmin, RoleEditor, RoleViewer, RoleCoach, RolePlayer)
	GroupNobody = NewRoleGroup("nobody")
)

// NewRoleGroup creates a role group.
func NewRoleGroup(name string, roles ...Role) RoleGroup {
	return RoleGroup{name: name, roles: slices.Clone(roles)}
}

// Name returns the group's name.
func (g RoleGroup) Name() string {
	return g.name
}

// Roles returns a copy of the group's members.
func (g RoleGroup) Roles() []Role {
	return slices.Clone(g.roles)
}

// Contains reports whether r is a member of the group.
func (g RoleGroup) Contains(r Role) bool {
	return slices.Contains(g.roles, r)
}

// Union returns a group admitting the members of both groups.
func (g RoleGroup) Union(name string, other RoleGroup) RoleGroup {
	roles := slices.Clone(g.roles)
	for _, r := range other.roles {
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	return RoleGroup{name: name, roles: roles}
}

func (g RoleGroup) String() string {
	return g.name
}

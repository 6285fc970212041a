// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Require accepts claims whose role belongs to group.
func Require(claims *SessionClaims, group RoleGroup) error {
	if claims == nil {
		return ErrMissingBearer
	}
	if !group.Contains(claims.Role) {
		return oops.Code(CodeForbidden).
			With("role", claims.Role).
			With("group", group.Name()).
			Public(MsgInsufficientRole).
			Wrap(ErrForbidden)
	}
	return nil
}

// RequireOwner accepts claims issued to ownerID. detail is the public message
// used on rejection.
func RequireOwner(claims *SessionClaims, ownerID, detail string) error {
	if claims == nil {
		return ErrMissingBearer
	}
	if !claims.IsSubject(ownerID) {
		if detail == "" {
			detail = MsgInsufficientRole
		}
		return oops.Code(CodeNotOwner).
			With("subject", claims.Subject).
			With("owner", ownerID).
			Public(detail).
			Wrap(ErrForbidden)
	}
	return nil
}

// Rule declares which roles may perform the operations matching Pattern.
// Operations are named "resource:action", for example "players:patch".
type Rule struct {
	// Pattern is a glob over operation names, with ':' as separator.
	Pattern string

	// Allow lists roles permitted on any resource.
	Allow RoleGroup

	// Owner lists roles permitted only on resources they own.
	Owner RoleGroup

	// OwnerDetail is the public message when an Owner role hits a resource
	// it does not own.
	OwnerDetail string
}

type compiledRule struct {
	Rule
	glob glob.Glob
}

// Policy maps operations to the roles allowed to perform them. The first
// matching rule wins and unknown operations are forbidden.
type Policy struct {
	rules []compiledRule
}

// DefaultRules returns the built-in operation table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern:     "players:patch",
			Allow:       GroupAdmin,
			Owner:       GroupPlayer,
			OwnerDetail: "You can only update your own profile",
		},
		{Pattern: "players:{list,read,export}", Allow: GroupStaff},
		{Pattern: "players:*", Allow: GroupAdmin},
		{
			Pattern:     "messages:mark-read",
			Allow:       GroupNobody,
			Owner:       GroupCoach,
			OwnerDetail: "You can only mark your own messages as read",
		},
		{Pattern: "messages:send", Allow: GroupAdmin.Union("admin-or-coach", GroupCoach)},
		{Pattern: "coaches:{create,verify,deactivate}", Allow: GroupAdmin},
		{Pattern: "coaches:{list,read}", Allow: GroupStaff},
		{Pattern: "projects:*", Allow: GroupAdmin},
		{Pattern: "exports:*", Allow: GroupAdmin},
		{Pattern: "profile:*", Allow: GroupAnyone},
		{Pattern: "password:change", Allow: GroupAnyone},
		{Pattern: "session:read", Allow: GroupAnyone},
	}
}

// NewPolicy compiles rules in order.
func NewPolicy(rules []Rule) (*Policy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		g, err := glob.Compile(r.Pattern, ':')
		if err != nil {
			return nil, oops.In("auth").
				Code("INVALID_OPERATION_PATTERN").
				With("pattern", r.Pattern).
				Wrap(err)
		}
		compiled = append(compiled, compiledRule{Rule: r, glob: g})
	}
	return &Policy{rules: compiled}, nil
}

// DefaultPolicy compiles DefaultRules.
//
// Panics if a default pattern is invalid (programming error).
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules())
	if err != nil {
		panic(err)
	}
	return p
}

// Rule returns the first rule matching operation.
func (p *Policy) Rule(operation string) (Rule, bool) {
	for _, r := range p.rules {
		if r.glob.Match(operation) {
			return r.Rule, true
		}
	}
	return Rule{}, false
}

// Authorize decides whether claims may perform operation on a resource owned
// by ownerID. ownerID may be empty for operations with no owner.
func (p *Policy) Authorize(claims *SessionClaims, operation, ownerID string) error {
	if claims == nil {
		return ErrMissingBearer
	}

	rule, ok := p.Rule(operation)
	if !ok {
		return oops.Code(CodeUnknownOperation).
			With("operation", operation).
			Public(MsgInsufficientRole).
			Wrap(ErrForbidden)
	}

	if rule.Allow.Contains(claims.Role) {
		return nil
	}
	if rule.Owner.Contains(claims.Role) {
		if err := RequireOwner(claims, ownerID, rule.OwnerDetail); err != nil {
			return oops.With("operation", operation).Wrap(err)
		}
		return nil
	}

	return oops.Code(CodeForbidden).
		With("operation", operation).
		With("role", claims.Role).
		Public(MsgInsufficientRole).
		Wrap(ErrForbidden)
}

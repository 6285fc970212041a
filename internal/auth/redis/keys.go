// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/recruitauth/internal/auth"
)

// Key prefix for all principal data.
const keyPrefix = "recruitauth"

// principalKey returns the key holding a principal record.
func principalKey(id ulid.ULID) string {
	return fmt.Sprintf("%s:principal:%s", keyPrefix, id)
}

// emailIndexKey returns the key for the (kind, email) -> principal id index.
func emailIndexKey(kind auth.Kind, email string) string {
	return fmt.Sprintf("%s:idx:email:%s:%s", keyPrefix, kind, strings.ToLower(email))
}

// playerKeyIndexKey returns the key for the player key -> principal id index.
func playerKeyIndexKey(key string) string {
	return fmt.Sprintf("%s:idx:player_key:%s", keyPrefix, strings.ToLower(key))
}

// indexKey returns the login identifier index key for p, or "" if it has none.
func indexKey(p *auth.Principal) string {
	switch {
	case p.Kind == auth.KindPlayer && p.PlayerKey != "":
		return playerKeyIndexKey(p.PlayerKey)
	case p.Kind != auth.KindPlayer && p.Email != "":
		return emailIndexKey(p.Kind, p.Email)
	default:
		return ""
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth is the authentication and authorization core: password
// digests, signed session tokens and role checks.
//
// # Components
//
//   - SaltedHasher - hashes passwords and verifies stored digests. Three
//     digest formats exist in stored data (see DigestFormat); only the
//     delimited form is produced, and bcrypt digests always fail closed.
//   - Codec - encodes and decodes compact HS256 tokens. The header algorithm
//     is checked, never used to pick the verification function.
//   - Issuer - builds SessionClaims for a Principal, valid for SessionLifetime.
//   - Verifier - checks signature and expiry and returns SessionClaims.
//   - Policy, Require, RequireOwner - role and ownership checks that run
//     after verification and before any business logic.
//
// # Services
//
// Service coordinates login, password change, profile lookup and coach
// verification on top of an IdentityRepository. Services are created with
// NewService, which validates dependencies.
//
// # Errors
//
// Every returned error wraps one of the package sentinels (ErrMalformedToken,
// ErrInvalidSignature, ErrExpired, ErrForbidden, ...) and carries an oops code.
// Messages safe to show to callers are attached with oops Public.
package auth

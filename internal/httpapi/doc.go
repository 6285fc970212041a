// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the auth core over HTTP: login, session
// inspection, password change, coach management, and a middleware that
// guards business routes with bearer tokens and the operation policy.
//
// Every error response has the body {"detail": "..."}. Authentication
// failures are 401 with a WWW-Authenticate: Bearer header and a uniform
// message; backend failures are 500 with a generic message.
package httpapi

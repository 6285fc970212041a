// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/clock"
	"github.com/holomush/recruitauth/pkg/errutil"
)

func newTestVerifier(t *testing.T, clk clock.Clock) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(newTestCodec(t), clk)
	require.NoError(t, err)
	return v
}

func TestVerifier_Expiry(t *testing.T) {
	clk := clock.NewMock(t0)
	issuer := newTestIssuer(t, clk)
	verifier := newTestVerifier(t, clk)

	issued, err := issuer.Issue(testStaff(t, auth.RoleAdmin))
	require.NoError(t, err)

	t.Run("fresh token verifies", func(t *testing.T) {
		claims, err := verifier.Verify(issued.Token)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, claims.Role)
		assert.Equal(t, issued.Claims.Subject, claims.Subject)
	})

	t.Run("valid just before expiry", func(t *testing.T) {
		clk.Set(t0.Add(23*time.Hour + 59*time.Minute))
		_, err := verifier.Verify(issued.Token)
		assert.NoError(t, err)
	})

	t.Run("valid at exactly exp", func(t *testing.T) {
		clk.Set(issued.ExpiresAt)
		_, err := verifier.Verify(issued.Token)
		assert.NoError(t, err)
	})

	t.Run("expired one second after exp", func(t *testing.T) {
		clk.Set(t0.Add(24*time.Hour + time.Second))
		_, err := verifier.Verify(issued.Token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrExpired)
		errutil.AssertErrorCode(t, err, auth.CodeTokenExpired)
		assert.Equal(t, auth.MsgInvalidToken, oops.GetPublic(err, ""))
		assert.True(t, auth.IsRejection(err))
	})
}

func TestVerifier_Rejections(t *testing.T) {
	clk := clock.NewMock(t0)
	verifier := newTestVerifier(t, clk)
	exp := t0.Add(time.Hour).Unix()
	header := `{"alg":"HS256","typ":"JWT"}`

	t.Run("empty token", func(t *testing.T) {
		_, err := verifier.Verify("")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		errutil.AssertErrorCode(t, err, auth.CodeMissingToken)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := verifier.Verify("not-a-token")
		assert.ErrorIs(t, err, auth.ErrMalformedToken)
	})

	t.Run("bad signature", func(t *testing.T) {
		token := signRaw(header, `{"sub":"01ARZ3NDEKTSV4RRFFQ69G5FAV","role":"admin"}`, []byte("wrong-secret-wrong-secret-wrong!"))
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})

	t.Run("malformed is reported before bad signature", func(t *testing.T) {
		_, err := verifier.Verify("a.b")
		assert.ErrorIs(t, err, auth.ErrMalformedToken)
		assert.NotErrorIs(t, err, auth.ErrInvalidSignature)
	})

	t.Run("bad signature is reported before expiry", func(t *testing.T) {
		token := signRaw(header, `{"sub":"01ARZ3NDEKTSV4RRFFQ69G5FAV","role":"admin","exp":1}`, []byte("wrong-secret-wrong-secret-wrong!"))
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
		assert.NotErrorIs(t, err, auth.ErrExpired)
	})

	tests := []struct {
		name   string
		claims string
	}{
		{"missing exp", `{"sub":"01ARZ3NDEKTSV4RRFFQ69G5FAV","role":"admin"}`},
		{"missing sub", `{"role":"admin","exp":` + itoa(exp) + `}`},
		{"unknown role", `{"sub":"01ARZ3NDEKTSV4RRFFQ69G5FAV","role":"superuser","exp":` + itoa(exp) + `}`},
		{"non canonical role", `{"sub":"01ARZ3NDEKTSV4RRFFQ69G5FAV","role":"Admin","exp":` + itoa(exp) + `}`},
		{"missing role", `{"sub":"01ARZ3NDEKTSV4RRFFQ69G5FAV","exp":` + itoa(exp) + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(signRaw(header, tt.claims, testSecret))
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrMalformedToken)
			errutil.AssertErrorCode(t, err, auth.CodeMalformedToken)
		})
	}

	t.Run("hand-built token with every role", func(t *testing.T) {
		for _, role := range []string{"admin", "editor", "viewer", "coach", "player"} {
			token := signRaw(header, `{"sub":"01ARZ3NDEKTSV4RRFFQ69G5FAV","role":"`+role+`","exp":`+itoa(exp)+`}`, testSecret)
			claims, err := verifier.Verify(token)
			require.NoError(t, err, role)
			assert.Equal(t, auth.Role(role), claims.Role)
		}
	})
}

func TestNewVerifier_RequiresCodec(t *testing.T) {
	_, err := auth.NewVerifier(nil, nil)
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

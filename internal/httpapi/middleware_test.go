// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/recruitauth/internal/clock"
	"github.com/holomush/recruitauth/internal/httpapi"
)

func TestClientLimiter_PerClientBuckets(t *testing.T) {
	clk := clock.NewMock(t0)
	l := httpapi.NewClientLimiter(httpapi.LimiterConfig{Rate: 1, Burst: 1, Clock: clk})

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "other clients keep their own bucket")

	clk.Advance(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestClientLimiter_SweepsIdleClients(t *testing.T) {
	clk := clock.NewMock(t0)
	l := httpapi.NewClientLimiter(httpapi.LimiterConfig{Rate: 1, Burst: 1, IdleTTL: time.Minute, Clock: clk})

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	assert.Equal(t, 2, l.Len())

	clk.Advance(2 * time.Minute)
	l.Allow("10.0.0.3")
	assert.Equal(t, 1, l.Len())
}

func TestClientLimiter_ClientKey(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login/coach", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	direct := httpapi.NewClientLimiter(httpapi.LimiterConfig{})
	assert.Equal(t, "192.0.2.10", direct.ClientKey(req))

	proxied := httpapi.NewClientLimiter(httpapi.LimiterConfig{TrustForwardedFor: true})
	assert.Equal(t, "203.0.113.5", proxied.ClientKey(req))

	req.RemoteAddr = "not-a-hostport"
	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "not-a-hostport", proxied.ClientKey(req))
}

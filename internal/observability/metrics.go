// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes recorded by RecordLogin.
const (
	OutcomeSuccess             = "success"
	OutcomeInvalidCredentials  = "invalid_credentials"
	OutcomeLocked              = "locked"
	OutcomeInactive            = "inactive"
	OutcomePendingVerification = "pending_verification"
	OutcomeRateLimited         = "rate_limited"
	OutcomeError               = "error"
)

// Metrics contains the recruitauth Prometheus collectors. All methods accept
// a nil receiver and do nothing.
type Metrics struct {
	Logins               *prometheus.CounterVec
	TokenRejections      *prometheus.CounterVec
	AuthorizationDenials *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the recruitauth metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitauth_logins_total",
				Help: "Total number of login attempts by principal kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		TokenRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitauth_token_rejections_total",
				Help: "Total number of rejected bearer tokens by reason",
			},
			[]string{"reason"},
		),
		AuthorizationDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitauth_authorization_denials_total",
				Help: "Total number of denied operations by matched policy rule",
			},
			[]string{"rule"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recruitauth_http_request_duration_seconds",
				Help:    "HTTP request latency by route, method and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
	}

	reg.MustRegister(m.Logins, m.TokenRejections, m.AuthorizationDenials, m.RequestDuration)
	return m
}

// RecordLogin counts one login attempt.
func (m *Metrics) RecordLogin(kind, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(kind, outcome).Inc()
}

// RecordTokenRejection counts one rejected token.
func (m *Metrics) RecordTokenRejection(reason string) {
	if m == nil {
		return
	}
	m.TokenRejections.WithLabelValues(reason).Inc()
}

// RecordDenial counts one denied operation.
func (m *Metrics) RecordDenial(rule string) {
	if m == nil {
		return
	}
	m.AuthorizationDenials.WithLabelValues(rule).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

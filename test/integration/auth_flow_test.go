// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/auth/postgres"
	"github.com/holomush/recruitauth/internal/httpapi"
	"github.com/holomush/recruitauth/internal/seed"
)

const seedDoc = `
principals:
  - kind: staff
    role: admin
    email: admin@example.edu
    display_name: Site Admin
    password: admin-password
  - kind: coach
    email: coach@example.edu
    display_name: Casey Coach
    school: Example State
    password: coach-password
  - kind: player
    player_key: PLY-4821
    display_name: Pat Player
    password: player-password
`

type apiClient struct {
	base   string
	client *http.Client
}

func (c *apiClient) do(method, path, token string, body any) (int, map[string]any) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if len(data) > 0 {
		Expect(json.Unmarshal(data, &out)).To(Succeed())
	}
	return resp.StatusCode, out
}

func (c *apiClient) login(kind, idField, id, password string) (int, map[string]any) {
	return c.do(http.MethodPost, "/auth/login/"+kind, "", map[string]string{idField: id, "password": password})
}

var _ = Describe("Authentication against PostgreSQL", func() {
	var (
		ctx    context.Context
		repo   *postgres.IdentityRepository
		server *httptest.Server
		api    *apiClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncatePrincipals(ctx, env.pool)

		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		codec, err := auth.NewCodec([]byte("integration-signing-secret-0123456789"))
		Expect(err).NotTo(HaveOccurred())
		issuer, err := auth.NewIssuer(codec, nil)
		Expect(err).NotTo(HaveOccurred())
		verifier, err := auth.NewVerifier(codec, nil)
		Expect(err).NotTo(HaveOccurred())

		repo = postgres.NewIdentityRepository(env.pool)
		service, err := auth.NewService(repo, auth.NewSaltedHasher(), issuer, auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		f, err := seed.Parse([]byte(seedDoc))
		Expect(err).NotTo(HaveOccurred())
		res, err := seed.Apply(ctx, service, f, logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Created).To(Equal(3))

		router, err := httpapi.NewRouter(httpapi.Config{
			Service:      service,
			Verifier:     verifier,
			Policy:       auth.DefaultPolicy(),
			LoginLimiter: httpapi.NewClientLimiter(httpapi.LimiterConfig{Rate: 1000, Burst: 1000}),
			Logger:       logger,
		})
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(router)
		api = &apiClient{base: server.URL, client: &http.Client{Timeout: 10 * time.Second}}
	})

	AfterEach(func() {
		server.Close()
	})

	It("logs staff in and serves their profile", func() {
		status, body := api.login("staff", "email", "ADMIN@example.edu", "admin-password")
		Expect(status).To(Equal(http.StatusOK))
		token := body["token"].(string)

		status, me := api.do(http.MethodGet, "/auth/me", token, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(me["email"]).To(Equal("admin@example.edu"))
		Expect(me["role"]).To(Equal("admin"))
	})

	It("keeps coaches out until an admin verifies them", func() {
		status, body := api.login("coach", "email", "coach@example.edu", "coach-password")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body["detail"]).To(Equal(auth.MsgPendingVerification))

		coach, err := repo.GetByEmail(ctx, auth.KindCoach, "coach@example.edu")
		Expect(err).NotTo(HaveOccurred())

		_, adminBody := api.login("staff", "email", "admin@example.edu", "admin-password")
		adminToken := adminBody["token"].(string)

		status, verified := api.do(http.MethodPost, "/auth/coaches/"+coach.ID.String()+"/verify", adminToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(verified["is_verified"]).To(BeTrue())

		status, body = api.login("coach", "email", "coach@example.edu", "coach-password")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["principal"].(map[string]any)["school"]).To(Equal("Example State"))
	})

	It("persists lockout state across requests", func() {
		for range auth.LockoutThreshold {
			status, body := api.login("player", "player_key", "PLY-4821", "wrong-password")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["detail"]).To(Equal(auth.MsgInvalidKeyPassword))
		}

		for _, password := range []string{"player-password", "another-wrong-password"} {
			status, body := api.login("player", "player_key", "ply-4821", password)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["detail"]).To(Equal(auth.MsgAccountLocked))
		}

		var failures int
		var lockedUntil *time.Time
		err := env.pool.QueryRow(ctx,
			"SELECT failed_attempts, locked_until FROM principals WHERE LOWER(player_key) = 'ply-4821'",
		).Scan(&failures, &lockedUntil)
		Expect(err).NotTo(HaveOccurred())
		Expect(failures).To(Equal(auth.LockoutThreshold))
		Expect(lockedUntil).NotTo(BeNil())
		Expect(*lockedUntil).To(BeTemporally(">", time.Now()))
	})

	It("changes a password and invalidates the old one", func() {
		_, body := api.login("player", "player_key", "PLY-4821", "player-password")
		token := body["token"].(string)

		status, _ := api.do(http.MethodPost, "/auth/password", token, map[string]string{
			"current_password": "player-password",
			"new_password":     "a-brand-new-password",
		})
		Expect(status).To(Equal(http.StatusNoContent))

		status, _ = api.login("player", "player_key", "PLY-4821", "player-password")
		Expect(status).To(Equal(http.StatusUnauthorized))
		status, _ = api.login("player", "player_key", "PLY-4821", "a-brand-new-password")
		Expect(status).To(Equal(http.StatusOK))
	})

	It("rejects seeding the same identifiers twice", func() {
		codec, err := auth.NewCodec([]byte("integration-signing-secret-0123456789"))
		Expect(err).NotTo(HaveOccurred())
		issuer, err := auth.NewIssuer(codec, nil)
		Expect(err).NotTo(HaveOccurred())
		service, err := auth.NewService(repo, auth.NewSaltedHasher(), issuer)
		Expect(err).NotTo(HaveOccurred())

		f, err := seed.Parse([]byte(seedDoc))
		Expect(err).NotTo(HaveOccurred())
		res, err := seed.Apply(ctx, service, f, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Created).To(BeZero())
		Expect(res.Skipped).To(Equal(3))
	})
})

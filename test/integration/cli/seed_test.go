// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const cliSecret = "cli-integration-secret-0123456789abcdef"

const seedFile = `
principals:
  - kind: staff
    role: admin
    email: admin@example.edu
    display_name: Site Admin
    password: admin-password
  - kind: player
    player_key: PLY-4821
    display_name: Pat Player
    password: player-password
`

// recruitauth runs the CLI against the test database.
func recruitauth(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, env.binary, args...)
	cmd.Env = append(cmd.Environ(),
		"DATABASE_URL="+env.connStr,
		"RECRUITAUTH_STORE__BACKEND=postgres",
		"RECRUITAUTH_AUTH__SIGNING_SECRET="+cliSecret,
		"RECRUITAUTH_LOG__FORMAT=text",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

var _ = Describe("Seed Command", func() {
	var (
		ctx      context.Context
		seedPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)

		seedPath = filepath.Join(GinkgoT().TempDir(), "seed.yaml")
		Expect(os.WriteFile(seedPath, []byte(seedFile), 0o600)).To(Succeed())

		output, err := recruitauth(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		Expect(output).To(ContainSubstring("No pending migrations"))
	})

	It("creates the listed principals with hashed passwords", func() {
		output, err := recruitauth(ctx, "seed", seedPath)
		Expect(err).NotTo(HaveOccurred(), "seed command failed: %s", output)
		Expect(output).To(ContainSubstring("2 created, 0 skipped"))

		var role, digest string
		err = env.pool.QueryRow(ctx,
			"SELECT role, password_hash FROM principals WHERE email = $1",
			"admin@example.edu",
		).Scan(&role, &digest)
		Expect(err).NotTo(HaveOccurred())
		Expect(role).To(Equal("admin"))
		Expect(digest).To(ContainSubstring(":"))
		Expect(digest).NotTo(ContainSubstring("admin-password"))
	})

	It("is idempotent (running twice succeeds without duplicates)", func() {
		output, err := recruitauth(ctx, "seed", seedPath)
		Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", output)

		output, err = recruitauth(ctx, "seed", seedPath)
		Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", output)
		Expect(output).To(ContainSubstring("0 created, 2 skipped"))

		var count int
		Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM principals").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(2))
	})

	It("reports the schema version", func() {
		output, err := recruitauth(ctx, "migrate", "status")
		Expect(err).NotTo(HaveOccurred(), "status failed: %s", output)
		Expect(output).To(ContainSubstring("Schema version: 2 (000002_principal_login_indexes, clean)"))
	})
})

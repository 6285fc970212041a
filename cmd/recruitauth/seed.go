// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/config"
	"github.com/holomush/recruitauth/internal/seed"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

func newSeedCmd(deps *Deps) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Create principals from a seed file",
		Long: `Create the principals listed in a YAML seed file. Passwords are hashed
before they are stored. Principals whose login identifier already exists
are skipped, so the command can be run repeatedly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runSeed(ctx, cmd, cfg, deps, args[0])
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for store operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *Deps, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}

	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}

	backend, err := deps.BackendFactory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	service, err := auth.NewService(backend.Identities, auth.NewSaltedHasher(), issuer, auth.WithLogger(logger))
	if err != nil {
		return err
	}

	res, err := seed.Apply(ctx, service, f, logger)
	if err != nil {
		return err
	}
	cmd.Printf("Seed complete: %d created, %d skipped\n", res.Created, res.Skipped)
	return nil
}

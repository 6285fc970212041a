// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/recruitauth/internal/config"
	"github.com/holomush/recruitauth/internal/xdg"
)

// NewRootCmd creates the root command for the recruitauth CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "recruitauth",
		Short: "recruitauth - authentication for the recruiting platform",
		Long: `recruitauth authenticates staff users, coaches and players with
salted password digests, issues 24-hour HS256 session tokens, and
authorizes operations by role and resource ownership.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (YAML, default $XDG_CONFIG_HOME/recruitauth/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newSeedCmd(deps))
	cmd.AddCommand(NewValidateSeedsCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewTokenCmd())

	return cmd
}

// loadConfig loads configuration for cmd from --config (or the XDG default
// file), the environment and any changed flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if path == "" {
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(config.Options{File: path, Flags: cmd.Flags()})
}

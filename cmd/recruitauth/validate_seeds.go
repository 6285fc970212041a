// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/recruitauth/internal/seed"
	"github.com/holomush/recruitauth/pkg/errutil"
)

// NewValidateSeedsCmd creates the validate-seeds subcommand.
func NewValidateSeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seeds <file>...",
		Short: "Check seed files without touching a store",
		Long: `Validate seed files against the seed schema and the principal rules.
Every file is checked; the command fails if any file is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidateSeeds,
	}
}

func runValidateSeeds(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		f, err := seed.LoadFile(path)
		if err != nil {
			failed++
			cmd.PrintErrf("FAIL %s: %v\n", path, describe(err))
			continue
		}
		cmd.Printf("ok   %s (%d principals)\n", path, len(f.Principals))
	}
	if failed > 0 {
		return oops.Code("SEED_INVALID").
			With("failed", failed).
			Errorf("%d of %d seed files are invalid", failed, len(args))
	}
	return nil
}

// describe prefixes err with its code and, when attached, the failing entry.
func describe(err error) string {
	msg := err.Error()
	if oopsErr, ok := oops.AsOops(err); ok {
		if idx, found := oopsErr.Context()["index"]; found {
			msg = fmt.Sprintf("entry %v: %s", idx, msg)
		}
	}
	if code := errutil.Code(err); code != "" {
		msg = code + ": " + msg
	}
	return msg
}

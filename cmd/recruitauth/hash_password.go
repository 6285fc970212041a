// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/recruitauth/internal/auth"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Read one password line from stdin and print its salted digest in the
stored "salt:hash" form.`,
		Args: cobra.NoArgs,
		RunE: runHashPassword,
	}
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return oops.Code(auth.CodeEmptyPassword).Errorf("no password on stdin")
	}
	password := strings.TrimRight(scanner.Text(), "\r")

	if err := auth.ValidateNewPassword(password); err != nil {
		return err
	}
	digest, err := auth.NewSaltedHasher().Hash(password)
	if err != nil {
		return err
	}
	cmd.Println(digest)
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/recruitauth/internal/auth"
	"github.com/holomush/recruitauth/internal/config"
)

// NewTokenCmd creates the token subcommand group.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or inspect session tokens",
		Long: `Issue and verify session tokens with the configured signing secret.
Useful for service accounts and for debugging rejected requests.`,
	}
	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenVerifyCmd())
	return cmd
}

type tokenIssueFlags struct {
	subject   string
	role      string
	name      string
	email     string
	playerKey string
	school    string
	tier      string
}

func newTokenIssueCmd() *cobra.Command {
	f := &tokenIssueFlags{}
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a session token for a principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runTokenIssue(cmd, cfg, f)
		},
	}
	cmd.Flags().StringVar(&f.subject, "subject", "", "principal ID (ULID); a new ID when empty")
	cmd.Flags().StringVar(&f.role, "role", "", "role claim (admin, editor, viewer, coach, player)")
	cmd.Flags().StringVar(&f.name, "name", "", "display name claim")
	cmd.Flags().StringVar(&f.email, "email", "", "email claim")
	cmd.Flags().StringVar(&f.playerKey, "player-key", "", "player key claim")
	cmd.Flags().StringVar(&f.school, "school", "", "school claim")
	cmd.Flags().StringVar(&f.tier, "tier", "", "subscription tier claim")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newIssuer(cfg *config.Config) (*auth.Issuer, error) {
	codec, err := auth.NewCodec([]byte(cfg.Auth.SigningSecret))
	if err != nil {
		return nil, err
	}
	return auth.NewIssuer(codec, nil, auth.WithIssuerName(cfg.Auth.Issuer))
}

// kindOf returns the principal kind that carries role.
func kindOf(role auth.Role) auth.Kind {
	switch role {
	case auth.RoleCoach:
		return auth.KindCoach
	case auth.RolePlayer:
		return auth.KindPlayer
	default:
		return auth.KindStaff
	}
}

func runTokenIssue(cmd *cobra.Command, cfg *config.Config, f *tokenIssueFlags) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	role, err := auth.ParseRole(f.role)
	if err != nil {
		return err
	}
	id := ulid.Make()
	if f.subject != "" {
		id, err = ulid.Parse(f.subject)
		if err != nil {
			return oops.Code("INVALID_SUBJECT").With("subject", f.subject).Wrap(err)
		}
	}

	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}
	issued, err := issuer.Issue(&auth.Principal{
		ID:               id,
		Kind:             kindOf(role),
		Role:             role,
		DisplayName:      f.name,
		Email:            f.email,
		PlayerKey:        f.playerKey,
		School:           f.school,
		SubscriptionTier: f.tier,
	})
	if err != nil {
		return err
	}

	cmd.Println(issued.Token)
	cmd.PrintErrf("subject %s, expires %s\n", issued.Claims.Subject, issued.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

func newTokenVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a session token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runTokenVerify(cmd, cfg, args[0])
		},
	}
}

func runTokenVerify(cmd *cobra.Command, cfg *config.Config, token string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	codec, err := auth.NewCodec([]byte(cfg.Auth.SigningSecret))
	if err != nil {
		return err
	}
	verifier, err := auth.NewVerifier(codec, nil)
	if err != nil {
		return err
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return oops.Code("CLAIMS_ENCODE_FAILED").Wrap(err)
	}
	cmd.Println(string(out))
	return nil
}

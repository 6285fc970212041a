// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package seed loads principals from YAML seed files.
//
// A seed file looks like:
//
//	principals:
//	  - kind: staff
//	    role: admin
//	    email: admin@example.edu
//	    display_name: Site Admin
//	    password: change-me-now
//	  - kind: player
//	    player_key: PLY-0001
//	    display_name: First Player
//	    password: change-me-too
//
// Passwords are hashed when the file is applied; existing principals are
// skipped.
package seed

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/recruitauth/internal/auth"
)

// File is the top-level document of a seed file.
type File struct {
	Principals []Entry `yaml:"principals" json:"principals" jsonschema:"minItems=1"`
}

// Entry describes one principal.
type Entry struct {
	Kind             string `yaml:"kind" json:"kind" jsonschema:"enum=staff,enum=coach,enum=player"`
	Role             string `yaml:"role,omitempty" json:"role,omitempty" jsonschema:"enum=admin,enum=editor,enum=viewer,enum=coach,enum=player"`
	Email            string `yaml:"email,omitempty" json:"email,omitempty" jsonschema:"format=email"`
	PlayerKey        string `yaml:"player_key,omitempty" json:"player_key,omitempty" jsonschema:"pattern=^[A-Za-z0-9][A-Za-z0-9-]{3\\,31}$"`
	DisplayName      string `yaml:"display_name" json:"display_name" jsonschema:"minLength=1,maxLength=120"`
	School           string `yaml:"school,omitempty" json:"school,omitempty"`
	SubscriptionTier string `yaml:"subscription_tier,omitempty" json:"subscription_tier,omitempty"`
	Password         string `yaml:"password" json:"password" jsonschema:"minLength=8,maxLength=128"`
	Verified         *bool  `yaml:"verified,omitempty" json:"verified,omitempty"`
}

// Enrollment converts the entry for auth.Service.Enroll.
func (e Entry) Enrollment() auth.Enrollment {
	role := auth.Role(e.Role)
	switch auth.Kind(e.Kind) {
	case auth.KindCoach:
		role = auth.RoleCoach
	case auth.KindPlayer:
		role = auth.RolePlayer
	}
	return auth.Enrollment{
		Kind:             auth.Kind(e.Kind),
		Role:             role,
		Email:            e.Email,
		PlayerKey:        e.PlayerKey,
		DisplayName:      e.DisplayName,
		School:           e.School,
		SubscriptionTier: e.SubscriptionTier,
		Password:         e.Password,
		Verified:         e.Verified,
	}
}

// Parse validates data against the seed schema and decodes it.
func Parse(data []byte) (*File, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}

	for i, e := range f.Principals {
		if err := checkEntry(e); err != nil {
			return nil, oops.With("index", i).Wrap(err)
		}
	}
	return &f, nil
}

// checkEntry enforces rules the schema cannot express per kind.
func checkEntry(e Entry) error {
	errb := oops.Code("SEED_INVALID").With("kind", e.Kind)
	switch auth.Kind(e.Kind) {
	case auth.KindStaff:
		if e.Email == "" {
			return errb.Errorf("staff entries require an email")
		}
		if !auth.Role(e.Role).IsStaff() {
			return errb.With("role", e.Role).Errorf("staff entries require role admin, editor or viewer")
		}
	case auth.KindCoach:
		if e.Email == "" {
			return errb.Errorf("coach entries require an email")
		}
	case auth.KindPlayer:
		if e.PlayerKey == "" {
			return errb.Errorf("player entries require a player_key")
		}
	}
	return nil
}

// LoadFile reads and parses the seed file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return f, nil
}

// Enroller creates principals from plaintext enrollments.
type Enroller interface {
	Enroll(ctx context.Context, e auth.Enrollment) (*auth.Principal, error)
}

// Result summarizes an Apply run.
type Result struct {
	Created int
	Skipped int
}

// Apply enrolls every entry in f. Entries whose login identifier already
// exists are skipped; any other failure stops the run.
func Apply(ctx context.Context, enroller Enroller, f *File, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	for i, e := range f.Principals {
		p, err := enroller.Enroll(ctx, e.Enrollment())
		switch {
		case err == nil:
			res.Created++
			logger.InfoContext(ctx, "seeded principal",
				"principal_id", p.ID.String(),
				"kind", p.Kind,
				"login_id", p.LoginID())
		case errors.Is(err, auth.ErrDuplicate):
			res.Skipped++
			logger.InfoContext(ctx, "principal already exists, skipping",
				"kind", e.Kind,
				"index", i)
		default:
			return res, oops.Code("SEED_FAILED").
				With("index", i).
				With("kind", e.Kind).
				Wrap(err)
		}
	}
	return res, nil
}

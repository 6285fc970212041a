// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/recruitauth/pkg/errutil"
)

// fakeMigrate implements migrateIface with canned results.
type fakeMigrate struct {
	upErr, downErr, stepsErr, forceErr error
	version                            uint
	dirty                              bool
	versionErr                         error
	closeSourceErr, closeDBErr         error

	steps  []int
	forced []int
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }
func (f *fakeMigrate) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.stepsErr
}

func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(v int) error {
	f.forced = append(f.forced, v)
	return f.forceErr
}
func (f *fakeMigrate) Close() (error, error) { return f.closeSourceErr, f.closeDBErr }

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/auth":   "pgx5://u:p@db:5432/auth",
		"postgresql://u:p@db:5432/auth": "pgx5://u:p@db:5432/auth",
		"pgx5://db/auth":                "pgx5://db/auth",
		"mysql://db/auth":               "mysql://db/auth",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigrateURL(in), in)
	}
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	for _, url := range []string{"invalid://url", "postgresql://127.0.0.1:1/none?connect_timeout=1"} {
		_, err := NewMigrator(url)
		require.Error(t, err, url)
		errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
		assert.NotContains(t, err.Error(), "unknown driver postgresql")
	}
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{
		upErr:    migrate.ErrNoChange,
		downErr:  migrate.ErrNoChange,
		stepsErr: migrate.ErrNoChange,
	}}

	assert.NoError(t, m.Up())
	assert.NoError(t, m.Down())
	assert.NoError(t, m.Steps(0))
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("database locked")

	tests := []struct {
		name string
		fake *fakeMigrate
		call func(*Migrator) error
		code string
	}{
		{"up", &fakeMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &fakeMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &fakeMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(2) }, "MIGRATION_STEPS_FAILED"},
		{"force", &fakeMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"negative force", &fakeMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"version", &fakeMigrate{versionErr: boom}, func(m *Migrator) error { _, _, err := m.Version(); return err }, "MIGRATION_VERSION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(&Migrator{m: tt.fake})
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_StepsAndForcePassThrough(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}

	require.NoError(t, m.Steps(-1))
	require.NoError(t, m.Force(2))
	assert.Equal(t, []int{-1}, fake.steps)
	assert.Equal(t, []int{2}, fake.forced)

	assert.Error(t, m.Force(-3))
	assert.Equal(t, []int{2}, fake.forced, "negative versions never reach golang-migrate")
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
}

func TestMigrator_Close(t *testing.T) {
	srcErr := errors.New("source close failed")
	dbErr := errors.New("db close failed")

	assert.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	tests := []struct {
		name      string
		fake      *fakeMigrate
		component string
	}{
		{"source", &fakeMigrate{closeSourceErr: srcErr}, "source"},
		{"database", &fakeMigrate{closeDBErr: dbErr}, "database"},
		{"both", &fakeMigrate{closeSourceErr: srcErr, closeDBErr: dbErr}, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.fake}).Close()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	err := (&Migrator{m: &fakeMigrate{closeSourceErr: srcErr, closeDBErr: dbErr}}).Close()
	assert.Contains(t, err.Error(), "source close failed")
	assert.Contains(t, err.Error(), "db close failed")
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeMigrate
		pending []uint
		applied []uint
	}{
		{"fresh database", &fakeMigrate{versionErr: migrate.ErrNilVersion}, []uint{1, 2}, nil},
		{"table only", &fakeMigrate{version: 1}, []uint{2}, []uint{1}},
		{"latest", &fakeMigrate{version: 2}, nil, []uint{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.fake}

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)
		})
	}

	t.Run("version errors carry the operation", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}

		_, err := m.PendingMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get pending migrations")

		_, err = m.AppliedMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
	})
}

func TestMigrator_Status(t *testing.T) {
	status, err := (&Migrator{m: &fakeMigrate{version: 1, dirty: true}}).Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), status.Version)
	assert.Equal(t, "000001_principals", status.Name)
	assert.True(t, status.Dirty)
	assert.Equal(t, []uint{2}, status.Pending)

	_, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("gone")}}).Status()
	assert.Error(t, err)
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		version uint
		want    string
	}{
		{1, "000001_principals"},
		{2, "000002_principal_login_indexes"},
		{0, ""},
		{999, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("version_%d", tt.version), func(t *testing.T) {
			name, err := MigrationName(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestAllMigrationVersions_ReturnsCopy(t *testing.T) {
	first, err := allMigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0] = 99999

	second, err := allMigrationVersions()
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0])
}

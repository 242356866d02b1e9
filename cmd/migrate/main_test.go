package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	version uint
	dirty   bool
	err     error
	closed  bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.err
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return f.err
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.version = uint(version)
	return f.err
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, f.err
}

func (f *fakeMigrator) Close() (error, error) {
	f.closed = true
	return nil, nil
}

func withFakeMigrator(t *testing.T, fake *fakeMigrator) {
	t.Helper()
	original := newMigrator
	newMigrator = func() (migrator, error) { return fake, nil }
	t.Cleanup(func() { newMigrator = original })
}

func TestRunUpAndDown(t *testing.T) {
	fake := &fakeMigrator{err: migrate.ErrNoChange}
	withFakeMigrator(t, fake)

	require.NoError(t, run([]string{"up"}, &bytes.Buffer{}))
	require.NoError(t, run([]string{"down", "2"}, &bytes.Buffer{}))
	require.Equal(t, []string{"up", "steps"}, fake.calls)
	require.Equal(t, -2, fake.steps)
	require.True(t, fake.closed)

	require.ErrorContains(t, run([]string{"up", "zero"}, &bytes.Buffer{}), "invalid steps")
}

func TestRunPropagatesMigrationErrors(t *testing.T) {
	withFakeMigrator(t, &fakeMigrator{err: errors.New("dirty database")})
	require.ErrorContains(t, run([]string{"up"}, &bytes.Buffer{}), "dirty database")
}

func TestRunVersionAndForce(t *testing.T) {
	fake := &fakeMigrator{version: 3, dirty: true}
	withFakeMigrator(t, fake)

	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	require.Equal(t, "Version 3 (dirty)\n", out.String())

	out.Reset()
	require.NoError(t, run([]string{"force", "2"}, &out))
	require.Equal(t, "Forced version to 2\n", out.String())
	require.Equal(t, uint(2), fake.version)

	require.Error(t, run([]string{"force"}, &out))
	require.Error(t, run([]string{"force", "two"}, &out))
}

func TestRunVersionWithoutMigrations(t *testing.T) {
	withFakeMigrator(t, &fakeMigrator{err: migrate.ErrNilVersion})

	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	require.Equal(t, "No migrations applied\n", out.String())
}

func TestRunCreateWritesMigrationPair(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POSTPORT_MIGRATIONS_DIR", dir)
	originalNow := nowUTC
	nowUTC = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { nowUTC = originalNow })

	var out bytes.Buffer
	require.NoError(t, run([]string{"create", "Add Status-Index!"}, &out))

	up, err := os.ReadFile(filepath.Join(dir, "20260102030405_add_status_index.up.sql"))
	require.NoError(t, err)
	require.Equal(t, "-- migrate up\n", string(up))
	_, err = os.Stat(filepath.Join(dir, "20260102030405_add_status_index.down.sql"))
	require.NoError(t, err)

	require.Error(t, run([]string{"create", "Add Status-Index!"}, &out))
	require.ErrorContains(t, run([]string{"create", "!!!"}, &out), "alphanumeric")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	require.ErrorContains(t, run([]string{"sideways"}, &bytes.Buffer{}), "unknown command")
}

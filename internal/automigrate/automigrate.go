// Package automigrate applies pending schema migrations when the server
// starts.
package automigrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

type migrator interface {
	Up() error
	Version() (uint, bool, error)
	Close() (error, error)
}

var openMigrator = func(sourceURL, databaseURL string) (migrator, error) {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Run applies every pending up migration found in migrationsDir.
func Run(databaseURL, migrationsDir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(databaseURL) == "" {
		return errors.New("DATABASE_URL is not set")
	}

	dir, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	versions, err := upVersions(dir)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("no up migrations found in %s", dir)
	}

	m, err := openMigrator("file://"+filepath.ToSlash(dir), databaseURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil || dbErr != nil {
			logger.Warn("failed to close migrator", zap.NamedError("source", sourceErr), zap.NamedError("database", dbErr))
		}
	}()

	before, dirty, err := currentVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d; run `migrate force` first", before)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database up to date", zap.Uint("version", before))
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	after, _, err := currentVersion(m)
	if err != nil {
		return err
	}
	applied := 0
	for _, v := range versions {
		if v > before && v <= after {
			applied++
		}
	}
	logger.Info("migrations applied", zap.Int("applied", applied), zap.Uint("version", after))
	return nil
}

func currentVersion(m migrator) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// upVersions lists the numeric prefixes of the .up.sql files in dir, e.g. 2
// for "002_create_statuses.up.sql".
func upVersions(dir string) ([]uint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	versions := make([]uint, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		ver, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, uint(ver))
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/samhotchkiss/postport/internal/config"
)

const defaultMigrationsDir = "migrations"

var migrationNamePattern = regexp.MustCompile(`[^a-z0-9_]+`)

type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

var (
	newMigrator = openMigrator
	nowUTC      = func() time.Time { return time.Now().UTC() }
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage(os.Stderr)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return nil
	}

	command, rest := args[0], args[1:]
	switch command {
	case "up":
		return runSteps(rest, 1)
	case "down":
		return runSteps(rest, -1)
	case "force":
		return runForce(rest, out)
	case "version":
		return runVersion(out)
	case "create":
		return runCreate(rest, out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [args]\n\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  up [n]        Apply all migrations or the next n migrations")
	fmt.Fprintln(w, "  down [n]      Roll back all migrations or the last n migrations")
	fmt.Fprintln(w, "  force <ver>   Force set the migration version (fixes dirty state)")
	fmt.Fprintln(w, "  version       Print the applied migration version")
	fmt.Fprintln(w, "  create <name> Create new migration files")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  DATABASE_URL               PostgreSQL connection string")
	fmt.Fprintln(w, "  POSTPORT_MIGRATIONS_DIR    Migration directory (default ./migrations)")
}

// runSteps applies every pending migration in direction, or n steps when an
// argument is given.
func runSteps(args []string, direction int) error {
	steps := 0
	if len(args) > 0 {
		parsed, err := parseSteps(args[0])
		if err != nil {
			return err
		}
		steps = parsed
	}

	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	switch {
	case steps > 0:
		err = m.Steps(direction * steps)
	case direction > 0:
		err = m.Up()
	default:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func runForce(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("version number is required")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version: %s", args[0])
	}

	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Force(version); err != nil {
		return err
	}
	fmt.Fprintf(out, "Forced version to %d\n", version)
	return nil
}

func runVersion(out io.Writer) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "No migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(out, "Version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(out, "Version %d\n", version)
	return nil
}

func runCreate(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("migration name is required")
	}
	name := sanitizeName(args[0])
	if name == "" {
		return errors.New("migration name must include at least one alphanumeric character")
	}

	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	base := fmt.Sprintf("%s_%s", nowUTC().Format("20060102150405"), name)
	upPath := filepath.Join(dir, base+".up.sql")
	downPath := filepath.Join(dir, base+".down.sql")
	if err := writeMigrationFile(upPath, "-- migrate up\n"); err != nil {
		return err
	}
	if err := writeMigrationFile(downPath, "-- migrate down\n"); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created %s and %s\n", upPath, downPath)
	return nil
}

func openMigrator() (migrator, error) {
	databaseURL := strings.TrimSpace(config.DatabaseURL())
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	dir, err := migrationsDir()
	if err != nil {
		return nil, err
	}
	m, err := migrate.New("file://"+filepath.ToSlash(dir), databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func migrationsDir() (string, error) {
	dir := strings.TrimSpace(os.Getenv("POSTPORT_MIGRATIONS_DIR"))
	if dir == "" {
		dir = defaultMigrationsDir
	}
	return filepath.Abs(dir)
}

func parseSteps(value string) (int, error) {
	steps, err := strconv.Atoi(value)
	if err != nil || steps <= 0 {
		return 0, fmt.Errorf("invalid steps: %s", value)
	}
	return steps, nil
}

func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	name = migrationNamePattern.ReplaceAllString(name, "")
	return strings.Trim(name, "_")
}

func writeMigrationFile(path string, contents string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(contents)
	return err
}

func closeMigrator(m migrator) {
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		fmt.Fprintf(os.Stderr, "source close error: %v\n", sourceErr)
	}
	if dbErr != nil {
		fmt.Fprintf(os.Stderr, "db close error: %v\n", dbErr)
	}
}

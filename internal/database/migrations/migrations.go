package migrations

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/uptrace/bun"
)

type MigrateOptions struct {
	// MigrationsDir holds the *.sql migration files.
	MigrationsDir string
	// AutoMigrate runs pending migrations on startup.
	AutoMigrate bool
}

func DefaultOptions() MigrateOptions {
	return MigrateOptions{MigrationsDir: "./migrations", AutoMigrate: true}
}

// Runner applies schema migrations against the service database.
type Runner struct {
	bunDB   *bun.DB
	options MigrateOptions
}

func NewRunner(bunDB *bun.DB, opts MigrateOptions) *Runner {
	return &Runner{bunDB: bunDB, options: opts}
}

func (r *Runner) migrator() (*migrate.Migrate, error) {
	if _, err := os.Stat(r.options.MigrationsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("migrations directory does not exist: %s", r.options.MigrationsDir)
	}

	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+r.options.MigrationsDir, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations brings the schema up to date. A dirty version left by an
// interrupted run is forced back to clean before applying.
func (r *Runner) RunMigrations() error {
	m, err := r.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		log.Printf("Schema version %d is dirty, forcing clean before migrating", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force clean version %d: %w", version, err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if version, _, err := m.Version(); err == nil {
		log.Printf("Schema at version %d", version)
	}
	return nil
}

// Rollback reverts the most recent migration.
func (r *Runner) Rollback() error {
	m, err := r.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close exists for callers that defer cleanup alongside the database
// handle; per-call migrators are already closed by the methods above.
func (r *Runner) Close() error {
	return nil
}

package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Status is the schema version after Apply.
type Status struct {
	Version uint
	Changed bool
}

// Apply brings a postgres database up to the embedded schema, including the
// partial unique index on (company_id, client_id, contract_id, period) that
// keeps next-charge generation idempotent and the tenant RLS policies.
func Apply(db *sql.DB) (Status, error) {
	if db == nil {
		return Status{}, errors.New("migration database handle is required")
	}

	m, err := newMigrator(db)
	if err != nil {
		return Status{}, err
	}
	// m.Close is not called: it would close the shared *sql.DB.

	var st Status
	switch err := m.Up(); {
	case err == nil:
		st.Changed = true
	case errors.Is(err, migrate.ErrNoChange):
	default:
		return st, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return st, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return st, fmt.Errorf("schema version %d is dirty", version)
	}
	st.Version = version
	return st, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "vehicleguard_schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "postgres", driver)
}

// Files lists the embedded migration files in apply order.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var MigrationFiles embed.FS

// Source returns the embedded catalog migrations.
func Source() (source.Driver, error) {
	d, err := iofs.New(MigrationFiles, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	return d, nil
}

// RunMigrations brings the catalog schema up to date. Production catalogs are
// owned by the storage engine, so with autoMigrate false it only reports the
// current version.
func RunMigrations(db *sql.DB, autoMigrate bool) error {
	src, err := Source()
	if err != nil {
		return err
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create catalog driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get catalog schema version: %w", err)
	}
	log := slog.With("version", version, "dirty", dirty)

	if !autoMigrate {
		if dirty {
			log.Warn("[Migrations] Catalog schema is dirty and auto-migration is disabled")
		}
		log.Info("[Migrations] Auto-migration disabled, skipping")
		return nil
	}

	if dirty {
		log.Warn("[Migrations] Catalog schema is dirty, forcing current version")
		// Only the baseline migration exists, forcing the current version is safe.
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to recover dirty catalog schema at version %d: %w", version, err)
		}
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("[Migrations] Catalog schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	newVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get migrated catalog schema version: %w", err)
	}
	slog.Info("[Migrations] Catalog migrations applied", "from_version", version, "to_version", newVersion)
	return nil
}

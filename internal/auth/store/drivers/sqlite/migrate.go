package sqlite

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/lockbox/internal/auth/store/drivers/sqlite/migrations"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrDirtySchema means an earlier migration failed halfway. The database has
// to be repaired by hand before lockbox will start on it.
var ErrDirtySchema = errors.New("sqlite: schema is dirty")

// migrator must not be closed: that would close s.db with it.
func (s *Store) migrator() (*migrate.Migrate, error) {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite: migration driver: %w", err)
	}
	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("sqlite: migration source: %w", err)
	}
	return migrate.NewWithInstance("iofs", source, "sqlite", driver)
}

// SchemaVersion is the last applied migration, 0 on an empty database.
func (s *Store) SchemaVersion() (uint, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, err
	}
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, err
	case dirty:
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}

// ApplyMigrations brings the schema up to date. Running it on a current
// schema does nothing.
func (s *Store) ApplyMigrations() error {
	before, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("sqlite: migrate from version %d: %w", before, err)
	}

	after, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	slog.Default().Info("schema migrated",
		slog.Uint64("from", uint64(before)),
		slog.Uint64("to", uint64(after)),
	)
	return nil
}

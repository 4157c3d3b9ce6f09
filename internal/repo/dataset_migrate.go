package repo

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/platformbuilds/mirador-insights/internal/storage/sqlstore"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// LatestVersion migrates to the newest embedded migration.
const LatestVersion = -1

// Migrate brings the dataset_config schema to targetVersion.
//   - targetVersion < 0 migrates to the latest version.
//   - targetVersion == 0 rolls every migration back.
//   - targetVersion > 0 migrates up or down to that version.
func Migrate(client *sqlstore.Client, targetVersion int, log logger.Logger) error {
	m, err := newMigrator(client)
	if err != nil {
		return err
	}

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d; fix it manually or force the version", currentVersion)
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("Dataset schema already up to date", "driver", client.Driver, "version", currentVersion)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to migrate dataset schema to version %d: %w", targetVersion, err)
	}

	newVersion, _, _ := m.Version()
	log.Info("Dataset schema migrated", "driver", client.Driver, "from", currentVersion, "to", newVersion)
	return nil
}

// SchemaVersion reports the applied migration version; 0 when none ran.
func SchemaVersion(client *sqlstore.Client) (uint, bool, error) {
	m, err := newMigrator(client)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func newMigrator(client *sqlstore.Client) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch client.Driver {
	case sqlstore.DriverSQLite:
		driver, err = sqlite.WithInstance(client.DB, &sqlite.Config{})
	case sqlstore.DriverMySQL:
		driver, err = mysql.WithInstance(client.DB, &mysql.Config{})
	case sqlstore.DriverPostgreSQL:
		driver, err = postgres.WithInstance(client.DB, &postgres.Config{})
	default:
		return nil, fmt.Errorf("migrations are not supported for driver %q", client.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", client.Driver, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+client.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "mirador-insights", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// Package migration applies the embedded schema migrations with
// golang-migrate against the application database.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/formbench/formbench/internal/support/logger"
)

//go:embed all:sql
var migrationsFS embed.FS

const migrationsTable = "bench_schema_migrations"

// Migrator applies schema migrations for one database type.
type Migrator struct {
	sqlDB  *sql.DB
	dbType string
}

// NewMigrator creates a Migrator for the given connection and database type
// ("postgres", "mysql" or "sqlite").
func NewMigrator(sqlDB *sql.DB, dbType string) *Migrator {
	return &Migrator{sqlDB: sqlDB, dbType: dbType}
}

// getDatabaseDriver retrieves a migrate/v4 driver based on the database type.
func (m *Migrator) getDatabaseDriver() (database.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(m.sqlDB, &postgres.Config{
			MigrationsTable: migrationsTable,
		})
	case "mysql":
		return mysql.WithInstance(m.sqlDB, &mysql.Config{
			MigrationsTable: migrationsTable,
		})
	case "sqlite":
		return sqlite.WithInstance(m.sqlDB, &sqlite.Config{
			MigrationsTable: migrationsTable,
		})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *Migrator) getMigrateInstance() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "sql/"+m.dbType)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for %s: %w", m.dbType, err)
	}

	dbDriver, err := m.getDatabaseDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mInstance, nil
}

// Up applies all pending migrations. An already up-to-date schema is not an
// error.
func (m *Migrator) Up(ctx context.Context) error {
	logger.Infof("Applying schema migrations (DB: %s)", m.dbType)

	mInstance, err := m.getMigrateInstance()
	if err != nil {
		return err
	}
	defer mInstance.Close()

	if err := mInstance.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed (DB: %s): %w", m.dbType, err)
	}

	logger.Infof("Schema migrations up to date.")
	return nil
}

package persistence

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"pulse/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationManager handles database migrations
type MigrationManager struct {
	db  *PostgresDB
	log *slog.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *PostgresDB) *MigrationManager {
	return &MigrationManager{
		db:  db,
		log: logger.Get(),
	}
}

// Migrate runs all pending migrations
func (m *MigrationManager) Migrate(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	available, err := m.loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	pending := m.findPendingMigrations(available, applied)
	if len(pending) == 0 {
		m.log.Info("No pending migrations")
		return nil
	}

	for _, migration := range pending {
		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.log.Info("Migration completed", "applied", len(pending))
	return nil
}

func (m *MigrationManager) ensureMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	_, err := m.db.db.ExecContext(ctx, query)
	return err
}

func (m *MigrationManager) getAppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := m.db.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// loadMigrations reads the embedded migration files. Filenames look like
// "001_initial_schema.sql".
func (m *MigrationManager) loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			m.log.Warn("Skipping migration file with invalid format", "file", entry.Name())
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			m.log.Warn("Skipping migration file with invalid version", "file", entry.Name())
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(strings.TrimSuffix(parts[1], ".sql"), "_", " "),
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *MigrationManager) findPendingMigrations(available []Migration, applied []int) []Migration {
	appliedMap := make(map[int]bool)
	for _, version := range applied {
		appliedMap[version] = true
	}

	var pending []Migration
	for _, migration := range available {
		if !appliedMap[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending
}

func (m *MigrationManager) applyMigration(ctx context.Context, migration Migration) error {
	m.log.Info("Applying migration", "version", migration.Version, "description", migration.Description)

	tx, err := m.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, description)
		VALUES ($1, $2)
		ON CONFLICT (version) DO NOTHING
	`, migration.Version, migration.Description)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

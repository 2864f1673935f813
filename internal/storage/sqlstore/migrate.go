package sqlstore

import (
	"context"
	"crypto/md5"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"pipeline-hub/internal/common/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationVersionRegex = regexp.MustCompile(`^(\d+)_.*\.sql$`)

// Migration is a single versioned schema file.
type Migration struct {
	Version  string
	Filename string
	Content  string
	Checksum string
}

// MigrationManager applies the embedded schema files for one dialect.
type MigrationManager struct {
	db      *sqlx.DB
	logger  logging.Logger
	files   fs.FS
	dialect string
}

// NewMigrationManager creates a manager over the embedded migrations.
func NewMigrationManager(db *sqlx.DB, dialect string, logger logging.Logger) *MigrationManager {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return &MigrationManager{
		db:      db,
		logger:  logger,
		files:   sub,
		dialect: dialect,
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := m.loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migration files: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := m.findPendingMigrations(migrations, applied)
	if len(pending) == 0 {
		m.logger.Debug("Database schema is up to date", logging.Field{Key: "dialect", Value: m.dialect})
		return nil
	}

	m.logger.Info("Found pending migrations",
		logging.Field{Key: "count", Value: len(pending)},
		logging.Field{Key: "versions", Value: versionList(pending)},
		logging.Field{Key: "dialect", Value: m.dialect},
	)

	for _, migration := range pending {
		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}
	return nil
}

func (m *MigrationManager) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			checksum TEXT
		)`)
	return err
}

func (m *MigrationManager) loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !m.isFileCompatible(filename) {
			continue
		}

		version := extractVersion(filename)
		if version == "" {
			m.logger.Warn("Skipping file with invalid version format",
				logging.Field{Key: "filename", Value: filename},
				logging.Field{Key: "expected_format", Value: "###_name_<dialect>.sql"},
			)
			continue
		}

		content, err := fs.ReadFile(m.files, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Filename: filename,
			Content:  string(content),
			Checksum: fmt.Sprintf("%x", md5.Sum(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return compareVersions(migrations[i].Version, migrations[j].Version) < 0
	})
	return migrations, nil
}

func (m *MigrationManager) isFileCompatible(filename string) bool {
	return strings.HasSuffix(filename, "_"+m.dialect+".sql")
}

func extractVersion(filename string) string {
	matches := migrationVersionRegex.FindStringSubmatch(filename)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

func compareVersions(v1, v2 string) int {
	n1, _ := strconv.Atoi(v1)
	n2, _ := strconv.Atoi(v2)

	switch {
	case n1 < n2:
		return -1
	case n1 > n2:
		return 1
	}
	return 0
}

func (m *MigrationManager) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	var versions []string
	if err := m.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (m *MigrationManager) findPendingMigrations(all []Migration, applied map[string]bool) []Migration {
	var pending []Migration
	for _, migration := range all {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending
}

func versionList(migrations []Migration) []string {
	versions := make([]string, len(migrations))
	for i, migration := range migrations {
		versions[i] = migration.Version
	}
	return versions
}

func (m *MigrationManager) applyMigration(ctx context.Context, migration Migration) error {
	m.logger.Info("Applying migration",
		logging.Field{Key: "version", Value: migration.Version},
		logging.Field{Key: "filename", Value: migration.Filename},
	)

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.Content); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, filename, applied_at, checksum) VALUES (?, ?, ?, ?)"),
		migration.Version,
		migration.Filename,
		time.Now().UTC(),
		migration.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// Status reports how many embedded migrations have been applied.
func (m *MigrationManager) Status(ctx context.Context) (map[string]interface{}, error) {
	migrations, err := m.loadMigrations()
	if err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	pending := m.findPendingMigrations(migrations, applied)
	return map[string]interface{}{
		"total_migrations":   len(migrations),
		"applied_migrations": len(applied),
		"pending_migrations": len(pending),
		"status":             fmt.Sprintf("%d/%d migrations applied", len(migrations)-len(pending), len(migrations)),
	}, nil
}

package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"loopscan/internal/logging"
)

//go:embed sql/*.sql
var files embed.FS

// Migrator handles database schema migrations
type Migrator struct {
	db *sqlx.DB
}

// NewMigrator creates a new migrator
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db}
}

// MigrationFile represents one embedded migration
type MigrationFile struct {
	Version  string
	Name     string
	Checksum string
	SQL      string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version string `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

// Up executes all pending migrations. A previously applied migration
// whose content changed is an error.
func (m *Migrator) Up(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := Files()
	if err != nil {
		return fmt.Errorf("failed to find migration files: %w", err)
	}

	for _, file := range migrations {
		if sum, ok := applied[file.Version]; ok {
			if sum != file.Checksum {
				return fmt.Errorf("migration %s changed after it was applied", file.Version)
			}
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		log.Info("applied migration", zap.String("version", file.Version), zap.String("name", file.Name))
	}
	return nil
}

// Status lists every known migration and whether it is applied
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	migrations, err := Files()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, file := range migrations {
		_, ok := applied[file.Version]
		out = append(out, MigrationStatus{Version: file.Version, Name: file.Name, Applied: ok})
	}
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// appliedMigrations returns the checksum of each applied version
func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Version  string `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := m.db.SelectContext(ctx, &rows, "SELECT version, checksum FROM schema_migrations"); err != nil {
		return nil, err
	}
	applied := make(map[string]string, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.Checksum
	}
	return applied, nil
}

// apply executes a single migration inside a transaction
func (m *Migrator) apply(ctx context.Context, file MigrationFile) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements(file.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}

	insert := tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)")
	if _, err := tx.ExecContext(ctx, insert, file.Version, file.Checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// Files returns the embedded migrations sorted by version
func Files() ([]MigrationFile, error) {
	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		return nil, err
	}

	var out []MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		// Parse filename: 001_results.sql
		parts := strings.SplitN(strings.TrimSuffix(e.Name(), ".sql"), "_", 2)
		if len(parts) < 2 {
			continue
		}
		data, err := files.ReadFile(path.Join("sql", e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, MigrationFile{
			Version:  parts[0],
			Name:     parts[1],
			Checksum: fmt.Sprintf("%x", sha256.Sum256(data)),
			SQL:      string(data),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// statements splits a migration into single statements. Migrations
// never contain semicolons inside literals.
func statements(sql string) []string {
	var out []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationNamePattern = regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.sql$`)

// Migration is a single schema change loaded from an embedded SQL file.
type Migration struct {
	Version     string
	Description string
	SQL         string
	Checksum    string
}

// LoadMigrations reads and orders the migrations bundled in fsys.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("migration %s: file name must look like 0001_description.sql", entry.Name())
		}
		version := match[1]
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %s declared by %s and %s", version, other, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:     version,
			Description: migrationDescription(string(content), entry.Name()),
			SQL:         string(content),
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func migrationDescription(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if desc, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(desc)
		}
	}
	return strings.TrimSuffix(fallback, ".sql")
}

// Migrate applies every pending embedded migration, each in its own
// transaction, and records it in schema_migrations. It returns the versions
// that were applied by this call.
func (cp *ConnectionPool) Migrate(ctx context.Context) ([]string, error) {
	migrations, err := LoadMigrations(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return cp.applyMigrations(ctx, migrations)
}

func (cp *ConnectionPool) applyMigrations(ctx context.Context, migrations []Migration) ([]string, error) {
	const createVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`
	if _, err := cp.db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	applied, err := cp.appliedChecksums(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, m := range migrations {
		if checksum, ok := applied[m.Version]; ok {
			if checksum != m.Checksum {
				return ran, fmt.Errorf("migration %s was modified after it was applied", m.Version)
			}
			continue
		}

		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			for i, stmt := range splitStatements(m.SQL) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %s statement %d: %w", m.Version, i+1, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description, checksum, applied_at) VALUES (?, ?, ?, ?)`,
				m.Version, m.Description, m.Checksum, time.Now().UTC().Format(time.RFC3339Nano),
			)
			return err
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, m.Version)
	}
	return ran, nil
}

func (cp *ConnectionPool) appliedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := cp.db.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// splitStatements drops comment lines and splits on semicolons. Migration
// files must not contain semicolons inside string literals or triggers.
func splitStatements(content string) []string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var statements []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

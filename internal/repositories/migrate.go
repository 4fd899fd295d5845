package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"gigBack/internal/repositories/migrations"
)

const migrationTable = "schema_migrations"

// SQL dialects with an embedded migration set.
const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// Migrate applies the dialect's embedded migrations that have not run yet.
func Migrate(ctx context.Context, db *sql.DB, dialect string) error {
	if dialect != DialectMySQL && dialect != DialectSQLite {
		return fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	sub, err := fs.Sub(migrations.FS, dialect)
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", dialect, err)
	}
	return applyMigrations(ctx, db, sub)
}

func applyMigrations(ctx context.Context, db *sql.DB, migrationFS fs.FS) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
		name VARCHAR(255) NOT NULL PRIMARY KEY,
		applied_at DATETIME(6) NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		// MySQL commits DDL implicitly, so statements run one by one.
		for _, stmt := range splitStatements(upSection(string(content))) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", file, err)
			}
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC()); err != nil {
			return fmt.Errorf("record migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	if i := strings.Index(content, up); i >= 0 {
		content = content[i+len(up):]
	}
	if i := strings.Index(content, down); i >= 0 {
		content = content[:i]
	}
	return content
}

func splitStatements(sqlText string) []string {
	var out []string
	for _, stmt := range strings.Split(sqlText, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

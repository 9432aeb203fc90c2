package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationTable = "schema_migrations"

//go:embed migrations
var migrationFS embed.FS

// migrator is the per-dialect half of the migration runner.
type migrator interface {
	ensureTable(ctx context.Context) error
	isApplied(ctx context.Context, name string) (bool, error)
	apply(ctx context.Context, name, upSQL string) error
}

// MigratePostgres applies the embedded PostgreSQL migrations at most once per file.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("postgres pool is required")
	}
	return applyMigrations(ctx, pgMigrator{pool: pool}, "migrations/postgres")
}

// MigrateSQLite applies the embedded SQLite migrations at most once per file.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}
	return applyMigrations(ctx, sqliteMigrator{db: db}, "migrations/sqlite")
}

func applyMigrations(ctx context.Context, m migrator, root string) error {
	entries, err := fs.ReadDir(migrationFS, root)
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

	if err := m.ensureTable(ctx); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	for _, file := range files {
		applied, err := m.isApplied(ctx, file)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied {
			continue
		}
		content, err := fs.ReadFile(migrationFS, path.Join(root, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := ExtractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}
		if err := m.apply(ctx, file, upSQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

type pgMigrator struct {
	pool *pgxpool.Pool
}

func (m pgMigrator) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (m pgMigrator) isApplied(ctx context.Context, name string) (bool, error) {
	var found int
	err := m.pool.QueryRow(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = $1`, name).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (m pgMigrator) apply(ctx context.Context, name, upSQL string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// No arguments, so pgx sends this over the simple protocol and
	// multi-statement files work.
	if _, err := tx.Exec(ctx, upSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+migrationTable+` (name, applied_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}

type sqliteMigrator struct {
	db *sql.DB
}

func (m sqliteMigrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
		name       TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`)
	return err
}

func (m sqliteMigrator) isApplied(ctx context.Context, name string) (bool, error) {
	var found int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (m sqliteMigrator) apply(ctx context.Context, name, upSQL string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upSQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
		name, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

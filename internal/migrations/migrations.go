// Package migrations applies the embedded schema to the managed Postgres
// database. Applied versions are recorded in schema_migrations.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

const (
	createLedger = `--sql 3c7d1e52-8a4f-4b6e-9d20-6f1a5b8c7e34
create table if not exists schema_migrations (
    version text primary key,
    applied_at timestamptz not null default now()
)`
	selectApplied = `--sql 0e9b6c48-2d17-4f5a-8c3e-b4d2a7f19065
select version from schema_migrations`
	insertApplied = `--sql a61f3d09-7c5e-4b82-9e47-1d8c0b2f6a53
insert into schema_migrations (version) values ($1)`
)

// Migration is one embedded schema file.
type Migration struct {
	Version string
	SQL     string
}

// Load returns the embedded migrations ordered by version.
func Load() ([]Migration, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "sql/"), ".sql")
		out = append(out, Migration{Version: version, SQL: string(body)})
	}
	return out, nil
}

// Apply runs every migration not yet recorded, each in its own transaction,
// and returns the versions it applied.
func Apply(ctx context.Context, db *sql.DB) ([]string, error) {
	migrations, err := Load()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createLedger); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyOne(ctx, db, m); err != nil {
			return done, err
		}
		done = append(done, m.Version)
	}
	return done, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, selectApplied)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyOne(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, insertApplied, m.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", m.Version, err)
	}
	return nil
}

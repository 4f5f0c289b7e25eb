package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const migrationsDir = "migrations"

// Migrate applies the SQL files under migrations/ in migrationFS that are not
// yet recorded in schema_migrations, in lexical order. Each file runs in one
// transaction with its bookkeeping row, so a failing file leaves no partial
// schema behind.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := migrationFiles(migrationFS)
	if err != nil {
		return err
	}
	done, err := Applied(ctx, d)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(done))
	for _, v := range done {
		seen[v] = true
	}

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))
		if seen[version] {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migrationsDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		err = d.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(b)); err != nil {
				return fmt.Errorf("exec migration %s: %w", fname, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
				return fmt.Errorf("record migration %s: %w", fname, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		d.logger.Info("migration applied", "version", version)
	}
	return nil
}

// Applied lists the recorded migration versions in order. A database that
// was never migrated has none.
func Applied(ctx context.Context, d *DB) ([]string, error) {
	var exists int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("look up schema_migrations: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	rows, err := d.QueryRows(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func migrationFiles(migrationFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Package migrations embeds the Postgres schema and applies it in order
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/store"
)

//go:embed *.up.sql
var FS embed.FS

// Files lists the migrations in the order they apply
func Files() ([]string, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// Up applies every migration not yet recorded in schema_migrations
// each file runs in its own transaction; the count applied is returned
func Up(ctx context.Context, db store.TxRunner) (int, error) {
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	files, err := Files()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, file := range files {
		version := strings.TrimSuffix(file, ".up.sql")
		done, err := store.Scalar[bool](ctx, db, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", version, err)
		}
		if done {
			continue
		}
		body, err := fs.ReadFile(FS, file)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}
		err = db.Tx(ctx, func(q store.RowQuerier) error {
			if _, err := q.Exec(ctx, string(body)); err != nil {
				return err
			}
			_, err := q.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("execute migration %s: %w", file, err)
		}
		logger.C(ctx).Info().Str("version", version).Msg("migration applied")
		applied++
	}
	return applied, nil
}

// Package migrate applies the embedded history schema. Each file runs in its
// own transaction together with its schema_migrations row.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/example/gym-sniper/internal/db"
)

//go:embed *.sql
var files embed.FS

const ledger = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Files lists the embedded migrations in the order they are applied.
func Files() ([]string, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Pending returns the migrations not yet recorded in schema_migrations.
func Pending(ctx context.Context, d db.Querier) ([]string, error) {
	all, err := Files()
	if err != nil {
		return nil, err
	}
	if err := d.Exec(ctx, ledger); err != nil {
		return nil, fmt.Errorf("migrate: create ledger: %w", err)
	}
	var todo []string
	for _, f := range all {
		var applied bool
		if err := d.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return nil, fmt.Errorf("migrate: check %s: %w", f, err)
		}
		if !applied {
			todo = append(todo, f)
		}
	}
	return todo, nil
}

// Up applies every pending migration and returns the versions it applied.
// A failing file is rolled back and stops the run.
func Up(ctx context.Context, d db.TxQuerier) ([]string, error) {
	todo, err := Pending(ctx, d)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, f := range todo {
		b, err := files.ReadFile(f)
		if err != nil {
			return applied, err
		}
		err = d.WithTx(ctx, func(tx db.Querier) error {
			if err := tx.Exec(ctx, string(b)); err != nil {
				return err
			}
			return tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f)
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", f, err)
		}
		applied = append(applied, f)
	}
	return applied, nil
}

package migrations

import (
	"context"
	"fmt"

	"equity-momentum-lab/internal/storage/sqlite"
)

// RunSQLiteMigrations applies all embedded SQLite files in one transaction.
func RunSQLiteMigrations(ctx context.Context, db *sqlite.DB) error {
	files, err := readMigrations(SQLiteFS, "sqlite")
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, m := range files {
		for _, stmt := range splitStatements(m.SQL) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

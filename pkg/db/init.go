package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion returns the version of the last applied migration.
func (r *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := r.DB.GetContext(ctx, &v, "PRAGMA user_version"); err != nil {
		return 0, storageErr("schema version", err)
	}

	return v, nil
}

// Migrate applies every pending migration in order, one transaction per
// step. Applied steps are skipped, so calling it again is a no-op.
func (r *SQLite) Migrate(ctx context.Context) error {
	current, err := r.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}

		slog.Debug("applying migration", "version", m.Version, "name", m.Name)

		err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
			for _, stmt := range m.Stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d %q: %w", m.Version, m.Name, err)
				}
			}

			// PRAGMA does not accept bound parameters.
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version))
			return err
		})
		if err != nil {
			return storageErr("migrate", err)
		}

		current = m.Version
	}

	return nil
}

// IsInitialized reports whether every table exists.
func (r *SQLite) IsInitialized(ctx context.Context) (bool, error) {
	for _, t := range []Table{tableAccounts, tableBookmarks, tableFavicons} {
		exists, err := r.tableExists(ctx, t)
		if err != nil {
			return false, err
		}

		if !exists {
			slog.Warn("table does not exist", "name", t)
			return false, nil
		}
	}

	return true, nil
}

// tableExists checks whether a table with the specified name exists in the SQLite database.
func (r *SQLite) tableExists(ctx context.Context, t Table) (bool, error) {
	var count int
	err := r.DB.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", t)
	if err != nil {
		slog.Error("checking if table exists", "name", t, "error", err)
		return false, storageErr("table exists", err)
	}

	return count > 0, nil
}

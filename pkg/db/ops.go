package db

import (
	"context"
	"fmt"
	"log/slog"
)

// Vacuum rebuilds the database file, repacking it into a minimal amount of
// disk space. Used after bulk favicon purges.
func (r *SQLite) Vacuum(ctx context.Context) error {
	slog.Debug("vacuuming database")

	if _, err := r.DB.ExecContext(ctx, "VACUUM"); err != nil {
		return storageErr("vacuum", err)
	}

	return nil
}

// VerifyIntegrity checks the integrity of the SQLite database.
func (r *SQLite) VerifyIntegrity(ctx context.Context) error {
	slog.Debug("verifying SQLite integrity", "name", r.Name())

	var result string
	if err := r.DB.QueryRowxContext(ctx, "PRAGMA quick_check;").Scan(&result); err != nil {
		return storageErr("integrity check", fmt.Errorf("%w: %w", ErrDBCorrupted, err))
	}

	if result != "ok" {
		return storageErr("integrity check", fmt.Errorf("%w: %q", ErrDBCorrupted, result))
	}

	slog.Debug("SQLite integrity verified", "result", result)

	return nil
}

// count runs a COUNT(*) query and wraps failures as storage errors.
func (r *SQLite) count(ctx context.Context, op, q string, args ...any) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, q, args...); err != nil {
		return 0, storageErr(op, err)
	}

	return n, nil
}

// checkPage rejects negative paging arguments.
func checkPage(limit, offset int) error {
	if limit < 0 || offset < 0 {
		return fmt.Errorf("%w: limit=%d offset=%d", ErrInvalidPage, limit, offset)
	}

	return nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vkhitrin/cosmicding-sub000/pkg/favicon"
)

// UpsertFavicon inserts or replaces the cache entry for a favicon URL.
func (r *SQLite) UpsertFavicon(ctx context.Context, e *favicon.Entry) error {
	if e.URL == "" {
		return fmt.Errorf("%w: favicon url", ErrRecordNoID)
	}

	data := e.Data
	if data == nil {
		data = []byte{}
	}

	_, err := r.DB.ExecContext(ctx, `
	INSERT INTO favicons (favicon_url, data, last_sync_timestamp)
	VALUES (?, ?, ?)
	ON CONFLICT(favicon_url) DO UPDATE SET
		data = excluded.data,
		last_sync_timestamp = excluded.last_sync_timestamp`,
		e.URL, data, e.LastSyncTimestamp,
	)
	if err != nil {
		return storageErr("upsert favicon", err)
	}

	return nil
}

// FindFavicon returns the cache entry for a favicon URL. The boolean is
// false when no entry exists.
func (r *SQLite) FindFavicon(ctx context.Context, u string) (*favicon.Entry, bool, error) {
	var e favicon.Entry
	err := r.DB.GetContext(ctx, &e,
		"SELECT favicon_url, data, last_sync_timestamp FROM favicons WHERE favicon_url = ?", u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, storageErr("find favicon", err)
	}

	return &e, true, nil
}

// PurgeFavicons deletes every cache entry and returns how many were removed.
func (r *SQLite) PurgeFavicons(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM favicons")
	if err != nil {
		return 0, storageErr("purge favicons", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("purge favicons", err)
	}

	return n, nil
}

// PurgeFaviconsForAccount deletes the cache entries referenced by the
// account's bookmarks and by no other account's bookmarks.
func (r *SQLite) PurgeFaviconsForAccount(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		n, err = purgeFaviconsForAccountTx(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return 0, storageErr("purge account favicons", err)
	}

	return n, nil
}

func purgeFaviconsForAccountTx(ctx context.Context, tx *sqlx.Tx, accountID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
	DELETE FROM favicons
	WHERE favicon_url IN (
		SELECT favicon_url FROM bookmarks WHERE user_account_id = ?
	)
	AND favicon_url NOT IN (
		SELECT favicon_url FROM bookmarks WHERE user_account_id != ?
	)`, accountID, accountID)
	if err != nil {
		return 0, fmt.Errorf("purging favicons: %w", err)
	}

	return res.RowsAffected()
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
)

const accountColumns = `
	id,
	display_name,
	instance,
	api_token,
	provider,
	provider_version,
	enabled,
	trust_invalid_certs,
	enable_sharing,
	enable_public_sharing,
	last_sync_status,
	last_sync_timestamp`

// CountAccounts returns the number of accounts.
func (r *SQLite) CountAccounts(ctx context.Context) (int, error) {
	return r.count(ctx, "count accounts", "SELECT COUNT(*) FROM accounts")
}

// ListAccountsPage returns one page of accounts ordered by id.
func (r *SQLite) ListAccountsPage(ctx context.Context, limit, offset int) ([]*account.Account, error) {
	if err := checkPage(limit, offset); err != nil {
		return nil, err
	}

	q := "SELECT " + accountColumns + " FROM accounts ORDER BY id ASC LIMIT ? OFFSET ?"

	var as []*account.Account
	if err := r.DB.SelectContext(ctx, &as, q, limit, offset); err != nil {
		return nil, storageErr("list accounts page", err)
	}

	return as, nil
}

// ListEnabledAccounts returns every enabled account ordered by id.
func (r *SQLite) ListEnabledAccounts(ctx context.Context) ([]*account.Account, error) {
	q := "SELECT " + accountColumns + " FROM accounts WHERE enabled = 1 ORDER BY id ASC"

	var as []*account.Account
	if err := r.DB.SelectContext(ctx, &as, q); err != nil {
		return nil, storageErr("list enabled accounts", err)
	}

	return as, nil
}

// AccountByID returns the account with the given id.
func (r *SQLite) AccountByID(ctx context.Context, id int64) (*account.Account, error) {
	var a account.Account
	err := r.DB.GetContext(ctx, &a, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %d", ErrRecordNotFound, id)
		}

		return nil, storageErr("account by id", err)
	}

	return &a, nil
}

// AccountExists reports whether an account with the same instance and token
// is already stored.
func (r *SQLite) AccountExists(ctx context.Context, instance, token string) (bool, error) {
	var exists bool
	err := r.DB.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE instance = ? AND api_token = ?)",
		instance, token,
	)
	if err != nil {
		return false, storageErr("account exists", err)
	}

	return exists, nil
}

// InsertAccount stores a new account and sets its id.
func (r *SQLite) InsertAccount(ctx context.Context, a *account.Account) (int64, error) {
	q := `
	INSERT INTO accounts (
		display_name,
		instance,
		api_token,
		provider,
		provider_version,
		enabled,
		trust_invalid_certs,
		enable_sharing,
		enable_public_sharing,
		last_sync_status,
		last_sync_timestamp
	) VALUES (
		:display_name,
		:instance,
		:api_token,
		:provider,
		:provider_version,
		:enabled,
		:trust_invalid_certs,
		:enable_sharing,
		:enable_public_sharing,
		:last_sync_status,
		:last_sync_timestamp
	)`

	res, err := r.DB.NamedExecContext(ctx, q, a)
	if err != nil {
		return 0, storageErr("insert account", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("insert account", err)
	}

	a.ID = id
	slog.Debug("inserted account", "id", id, "instance", a.Instance)

	return id, nil
}

// UpdateAccount writes every editable field of a stored account.
func (r *SQLite) UpdateAccount(ctx context.Context, a *account.Account) error {
	if a.ID == 0 {
		return ErrRecordNoID
	}

	q := `
	UPDATE accounts SET
		display_name = :display_name,
		instance = :instance,
		api_token = :api_token,
		provider = :provider,
		provider_version = :provider_version,
		enabled = :enabled,
		trust_invalid_certs = :trust_invalid_certs,
		enable_sharing = :enable_sharing,
		enable_public_sharing = :enable_public_sharing,
		last_sync_status = :last_sync_status,
		last_sync_timestamp = :last_sync_timestamp
	WHERE id = :id`

	res, err := r.DB.NamedExecContext(ctx, q, a)
	if err != nil {
		return storageErr("update account", err)
	}

	return expectAffected(res, "account", a.ID)
}

// UpdateAccountSync records the outcome of a sync attempt.
func (r *SQLite) UpdateAccountSync(ctx context.Context, id int64, ok bool, ts int64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET last_sync_status = ?, last_sync_timestamp = ? WHERE id = ?",
		ok, ts, id,
	)
	if err != nil {
		return storageErr("update account sync", err)
	}

	return expectAffected(res, "account", id)
}

// DeleteAccount removes an account, its bookmarks and the favicon rows no
// other account references, in one transaction.
func (r *SQLite) DeleteAccount(ctx context.Context, id int64) error {
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := purgeFaviconsForAccountTx(ctx, tx, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM bookmarks WHERE user_account_id = ?", id); err != nil {
			return fmt.Errorf("deleting bookmarks: %w", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting account: %w", err)
		}

		return expectAffected(res, "account", id)
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return err
		}

		return storageErr("delete account", err)
	}

	slog.Debug("deleted account", "id", id)

	return nil
}

// expectAffected returns ErrRecordNotFound when no row was touched.
func expectAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrRecordNotFound, what, id)
	}

	return nil
}

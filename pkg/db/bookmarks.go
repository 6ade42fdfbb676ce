package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
)

const bookmarkColumns = `
	b.id,
	b.user_account_id,
	b.provider_internal_id,
	b.url,
	b.title,
	b.description,
	b.notes,
	b.website_title,
	b.website_description,
	b.web_archive_snapshot_url,
	b.favicon_url,
	b.preview_image_url,
	b.tag_names,
	b.is_archived,
	b.unread,
	b.shared,
	b.is_owner,
	b.date_added,
	b.date_modified`

// bookmarkListFrom restricts rows to enabled accounts and joins the favicon
// cache; a missing favicon is not an error.
const bookmarkListFrom = `
	FROM bookmarks b
	JOIN accounts a ON a.id = b.user_account_id
	LEFT JOIN favicons f ON f.favicon_url = b.favicon_url AND b.favicon_url != ''
	WHERE a.enabled = 1`

const insertBookmarkQuery = `
	INSERT INTO bookmarks (
		user_account_id,
		provider_internal_id,
		url,
		title,
		description,
		notes,
		website_title,
		website_description,
		web_archive_snapshot_url,
		favicon_url,
		preview_image_url,
		tag_names,
		is_archived,
		unread,
		shared,
		is_owner,
		date_added,
		date_modified
	) VALUES (
		:user_account_id,
		:provider_internal_id,
		:url,
		:title,
		:description,
		:notes,
		:website_title,
		:website_description,
		:web_archive_snapshot_url,
		:favicon_url,
		:preview_image_url,
		:tag_names,
		:is_archived,
		:unread,
		:shared,
		:is_owner,
		:date_added,
		:date_modified
	)`

// orderBy maps a sort order to a whitelisted ORDER BY clause.
func orderBy(s bookmark.SortOrder) (string, error) {
	const title = foldFunc + "(COALESCE(NULLIF(b.title, ''), NULLIF(b.website_title, ''), b.url))"

	switch s {
	case bookmark.SortNewest:
		return "b.date_added DESC, b.id DESC", nil
	case bookmark.SortOldest:
		return "b.date_added ASC, b.id ASC", nil
	case bookmark.SortTitleAsc:
		return title + " ASC, b.id ASC", nil
	case bookmark.SortTitleDesc:
		return title + " DESC, b.id DESC", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidSortBy, s)
	}
}

// CountBookmarks returns the number of bookmarks, optionally only those
// owned by enabled accounts.
func (r *SQLite) CountBookmarks(ctx context.Context, enabledOnly bool) (int, error) {
	if !enabledOnly {
		return r.count(ctx, "count bookmarks", "SELECT COUNT(*) FROM bookmarks")
	}

	return r.count(ctx, "count bookmarks",
		"SELECT COUNT(*) FROM bookmarks b JOIN accounts a ON a.id = b.user_account_id WHERE a.enabled = 1")
}

// ListBookmarksPage returns one page of bookmarks from enabled accounts.
func (r *SQLite) ListBookmarksPage(
	ctx context.Context,
	limit, offset int,
	sort bookmark.SortOrder,
) ([]*bookmark.Bookmark, error) {
	if err := checkPage(limit, offset); err != nil {
		return nil, err
	}

	order, err := orderBy(sort)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + bookmarkColumns + ", f.data AS favicon_data " + bookmarkListFrom +
		" ORDER BY " + order + " LIMIT ? OFFSET ?"

	var bs []*bookmark.Bookmark
	if err := r.DB.SelectContext(ctx, &bs, q, limit, offset); err != nil {
		return nil, storageErr("list bookmarks page", err)
	}

	return bs, nil
}

// searchRow carries the window count next to each matched bookmark.
type searchRow struct {
	bookmark.Bookmark
	Total int `db:"total_count"`
}

// SearchBookmarks returns the total number of matches and one page of them.
// The match is a case-insensitive substring over url, title, description,
// notes and tags; the count comes from the same statement as the page.
func (r *SQLite) SearchBookmarks(
	ctx context.Context,
	query string,
	limit, offset int,
	sort bookmark.SortOrder,
) (int, []*bookmark.Bookmark, error) {
	if err := checkPage(limit, offset); err != nil {
		return 0, nil, err
	}

	order, err := orderBy(sort)
	if err != nil {
		return 0, nil, err
	}

	q := "SELECT " + bookmarkColumns + ", f.data AS favicon_data, COUNT(*) OVER () AS total_count " +
		bookmarkListFrom + `
	AND ` + foldFunc + `(b.url || ' ' || b.title || ' ' || b.description || ' ' || b.notes || ' ' || b.tag_names)
		LIKE ? ESCAPE '\'
	ORDER BY ` + order + " LIMIT ? OFFSET ?"

	slog.Debug("searching bookmarks", "query", query, "limit", limit, "offset", offset)

	var rows []*searchRow
	if err := r.DB.SelectContext(ctx, &rows, q, likePattern(query), limit, offset); err != nil {
		return 0, nil, storageErr("search bookmarks", err)
	}

	if len(rows) == 0 {
		return 0, []*bookmark.Bookmark{}, nil
	}

	bs := make([]*bookmark.Bookmark, 0, len(rows))
	for _, row := range rows {
		b := row.Bookmark
		bs = append(bs, &b)
	}

	return rows[0].Total, bs, nil
}

// likePattern folds the query the same way the searched columns are folded,
// escapes LIKE wildcards and wraps it for substring matching.
func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)

	return "%" + s + "%"
}

// AccountBookmarks returns every bookmark of one account, ordered by id.
func (r *SQLite) AccountBookmarks(ctx context.Context, accountID int64) ([]*bookmark.Bookmark, error) {
	q := "SELECT " + bookmarkColumns + " FROM bookmarks b WHERE b.user_account_id = ? ORDER BY b.id ASC"

	var bs []*bookmark.Bookmark
	if err := r.DB.SelectContext(ctx, &bs, q, accountID); err != nil {
		return nil, storageErr("account bookmarks", err)
	}

	return bs, nil
}

// BookmarkByID returns the bookmark with the given local id.
func (r *SQLite) BookmarkByID(ctx context.Context, id int64) (*bookmark.Bookmark, error) {
	return r.bookmarkBy(ctx, "b.id = ?", id)
}

// BookmarkByURL returns the bookmark of an account with the given URL.
func (r *SQLite) BookmarkByURL(ctx context.Context, accountID int64, bURL string) (*bookmark.Bookmark, error) {
	return r.bookmarkBy(ctx, "b.user_account_id = ? AND b.url = ?", accountID, bURL)
}

// BookmarkByRemoteID returns the bookmark of an account with the given
// provider-side id.
func (r *SQLite) BookmarkByRemoteID(ctx context.Context, accountID, remoteID int64) (*bookmark.Bookmark, error) {
	return r.bookmarkBy(ctx, "b.user_account_id = ? AND b.provider_internal_id = ?", accountID, remoteID)
}

func (r *SQLite) bookmarkBy(ctx context.Context, where string, args ...any) (*bookmark.Bookmark, error) {
	q := "SELECT " + bookmarkColumns + " FROM bookmarks b WHERE " + where + " ORDER BY b.id ASC LIMIT 1"

	var b bookmark.Bookmark
	if err := r.DB.GetContext(ctx, &b, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", ErrRecordNotFound, args)
		}

		return nil, storageErr("bookmark lookup", err)
	}

	return &b, nil
}

// InsertBookmark stores a new bookmark and sets its id.
func (r *SQLite) InsertBookmark(ctx context.Context, b *bookmark.Bookmark) (int64, error) {
	if err := bookmark.Validate(b); err != nil {
		return 0, err
	}

	var id int64
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = insertBookmarkTx(ctx, tx, b)
		return err
	})
	if err != nil {
		return 0, storageErr("insert bookmark", err)
	}

	return id, nil
}

// UpdateBookmark writes every stored field of an existing bookmark.
func (r *SQLite) UpdateBookmark(ctx context.Context, b *bookmark.Bookmark) error {
	if b.ID == 0 {
		return ErrRecordNoID
	}

	q := `
	UPDATE bookmarks SET
		user_account_id = :user_account_id,
		provider_internal_id = :provider_internal_id,
		url = :url,
		title = :title,
		description = :description,
		notes = :notes,
		website_title = :website_title,
		website_description = :website_description,
		web_archive_snapshot_url = :web_archive_snapshot_url,
		favicon_url = :favicon_url,
		preview_image_url = :preview_image_url,
		tag_names = :tag_names,
		is_archived = :is_archived,
		unread = :unread,
		shared = :shared,
		is_owner = :is_owner,
		date_added = :date_added,
		date_modified = :date_modified
	WHERE id = :id`

	res, err := r.DB.NamedExecContext(ctx, q, b)
	if err != nil {
		return storageErr("update bookmark", err)
	}

	return expectAffected(res, "bookmark", b.ID)
}

// DeleteBookmark removes one bookmark by local id.
func (r *SQLite) DeleteBookmark(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = ?", id)
	if err != nil {
		return storageErr("delete bookmark", err)
	}

	return expectAffected(res, "bookmark", id)
}

// ReplaceAccountBookmarks deletes every bookmark of an account and inserts
// bs in the same transaction. On failure the previous rows are kept and bs
// is left untouched; on commit each bookmark gets its account and row id.
func (r *SQLite) ReplaceAccountBookmarks(ctx context.Context, accountID int64, bs []*bookmark.Bookmark) error {
	slog.Debug("replacing account bookmarks", "account", accountID, "count", len(bs))

	ids := make([]int64, len(bs))
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM bookmarks WHERE user_account_id = ?", accountID); err != nil {
			return fmt.Errorf("deleting old rows: %w", err)
		}

		stmt, err := tx.PrepareNamedContext(ctx, insertBookmarkQuery)
		if err != nil {
			return fmt.Errorf("prepared statement: %w", err)
		}

		defer func() {
			if err := stmt.Close(); err != nil {
				slog.Error("replace bookmarks: closing stmt", "error", err)
			}
		}()

		for i, b := range bs {
			row := *b
			row.AccountID = accountID
			res, err := stmt.ExecContext(ctx, &row)
			if err != nil {
				return fmt.Errorf("%w: %q", err, b.URL)
			}

			if ids[i], err = res.LastInsertId(); err != nil {
				return fmt.Errorf("%w", err)
			}
		}

		return nil
	})
	if err != nil {
		return storageErr("replace account bookmarks", err)
	}

	for i, b := range bs {
		b.AccountID = accountID
		b.ID = ids[i]
	}

	return nil
}

// insertBookmarkTx inserts a record inside an existing transaction.
func insertBookmarkTx(ctx context.Context, tx *sqlx.Tx, b *bookmark.Bookmark) (int64, error) {
	if err := bookmark.Validate(b); err != nil {
		return 0, fmt.Errorf("abort: %w", err)
	}

	res, err := tx.NamedExecContext(ctx, insertBookmarkQuery, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, b.URL)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w", err)
	}

	b.ID = id
	slog.Debug("inserted bookmark", "id", id, "url", b.URL)

	return id, nil
}

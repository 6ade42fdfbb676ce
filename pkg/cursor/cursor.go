package cursor

import (
	"context"
	"strings"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
)

// AccountSource is the part of the store an Accounts cursor reads.
type AccountSource interface {
	CountAccounts(ctx context.Context) (int, error)
	ListAccountsPage(ctx context.Context, limit, offset int) ([]*account.Account, error)
}

// BookmarkSource is the part of the store a Bookmarks cursor reads.
type BookmarkSource interface {
	CountBookmarks(ctx context.Context, enabledOnly bool) (int, error)
	ListBookmarksPage(ctx context.Context, limit, offset int, sort bookmark.SortOrder) ([]*bookmark.Bookmark, error)
	SearchBookmarks(
		ctx context.Context,
		query string,
		limit, offset int,
		sort bookmark.SortOrder,
	) (int, []*bookmark.Bookmark, error)
}

// Accounts pages over stored accounts.
type Accounts struct {
	Pager
	Result []*account.Account

	src AccountSource
}

// NewAccounts returns an accounts cursor on page 1.
func NewAccounts(src AccountSource, perPage int) *Accounts {
	return &Accounts{Pager: newPager(perPage), src: src}
}

// RefreshCount recomputes the totals and clamps the current page.
func (c *Accounts) RefreshCount(ctx context.Context) error {
	n, err := c.src.CountAccounts(ctx)
	if err != nil {
		return err
	}

	c.TotalEntries = n
	c.recompute()

	return nil
}

// FetchPage loads the current page into Result.
func (c *Accounts) FetchPage(ctx context.Context) error {
	c.Offset = (c.CurrentPage - 1) * c.ItemsPerPage

	as, err := c.src.ListAccountsPage(ctx, c.ItemsPerPage, c.Offset)
	if err != nil {
		return err
	}

	c.Result = as

	return nil
}

// Reload refreshes the count and fetches the current page.
func (c *Accounts) Reload(ctx context.Context) error {
	if err := c.RefreshCount(ctx); err != nil {
		return err
	}

	return c.FetchPage(ctx)
}

// Bookmarks pages over bookmarks of enabled accounts, optionally filtered
// by a free-text query.
type Bookmarks struct {
	Pager
	Query  string
	Sort   bookmark.SortOrder
	Result []*bookmark.Bookmark

	src BookmarkSource
	// counted is true once a search fetch produced TotalEntries for Query.
	counted bool
}

// NewBookmarks returns a bookmarks cursor on page 1.
func NewBookmarks(src BookmarkSource, perPage int, sort bookmark.SortOrder) *Bookmarks {
	return &Bookmarks{Pager: newPager(perPage), Sort: sort, src: src}
}

// SetQuery sets or clears the free-text filter and returns to page 1.
func (c *Bookmarks) SetQuery(q string) {
	q = strings.TrimSpace(q)
	if q == c.Query {
		return
	}

	c.Query = q
	c.counted = false
	c.SetPage(0)
}

// Searching reports whether a free-text filter is active.
func (c *Bookmarks) Searching() bool {
	return c.Query != ""
}

// RefreshCount recomputes the totals and clamps the current page. With an
// active search the count produced by the last search fetch is kept.
func (c *Bookmarks) RefreshCount(ctx context.Context) error {
	switch {
	case c.Searching() && c.counted:
		// keep the count of the filtered set
	case c.Searching():
		n, _, err := c.src.SearchBookmarks(ctx, c.Query, 1, 0, c.Sort)
		if err != nil {
			return err
		}
		c.TotalEntries = n
		c.counted = true
	default:
		n, err := c.src.CountBookmarks(ctx, true)
		if err != nil {
			return err
		}
		c.TotalEntries = n
	}

	c.recompute()

	return nil
}

// FetchPage loads the current page into Result. A search replaces
// TotalEntries with its match count and re-derives the page totals.
func (c *Bookmarks) FetchPage(ctx context.Context) error {
	c.Offset = (c.CurrentPage - 1) * c.ItemsPerPage

	if !c.Searching() {
		bs, err := c.src.ListBookmarksPage(ctx, c.ItemsPerPage, c.Offset, c.Sort)
		if err != nil {
			return err
		}
		c.Result = bs

		return nil
	}

	n, bs, err := c.src.SearchBookmarks(ctx, c.Query, c.ItemsPerPage, c.Offset, c.Sort)
	if err != nil {
		return err
	}

	// an offset past the filtered set yields no rows and no count; start
	// over from the first page to learn the real count.
	if len(bs) == 0 && c.CurrentPage > 1 {
		c.SetPage(0)
		return c.FetchPage(ctx)
	}

	c.Result = bs
	c.TotalEntries = n
	c.counted = true

	return c.RefreshCount(ctx)
}

// Reload refreshes the count and fetches the current page. Searches are
// re-counted since the underlying rows may have changed.
func (c *Bookmarks) Reload(ctx context.Context) error {
	c.counted = false
	if err := c.RefreshCount(ctx); err != nil {
		return err
	}

	return c.FetchPage(ctx)
}

package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
)

// Lookup finds an account's stored bookmark by URL.
type Lookup interface {
	BookmarkByURL(ctx context.Context, accountID int64, url string) (*bookmark.Bookmark, error)
}

// Scraper fetches page metadata for a URL.
type Scraper interface {
	Metadata(ctx context.Context, url string) (title, desc string, err error)
}

type LocalOption func(*Local)

// WithScraper fills website metadata of new untitled bookmarks.
func WithScraper(s Scraper) LocalOption {
	return func(l *Local) {
		l.scraper = s
	}
}

// WithLocalClock replaces the wall clock.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		l.now = now
	}
}

// Local keeps bookmarks only in the store. Nothing is pulled or pushed.
type Local struct {
	lookup  Lookup
	version string
	scraper Scraper
	now     func() time.Time
}

// NewLocal returns the local provider reporting version as its own.
func NewLocal(lookup Lookup, version string, opts ...LocalOption) *Local {
	l := &Local{lookup: lookup, version: version, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Local) FetchBookmarks(context.Context, *account.Account) Result[[]*bookmark.Bookmark] {
	return success([]*bookmark.Bookmark{}, l.now())
}

// PopulateBookmark matches b against the stored row with the same URL. A
// match keeps its id and date added; otherwise b is stamped as new.
func (l *Local) PopulateBookmark(
	ctx context.Context,
	acc *account.Account,
	b *bookmark.Bookmark,
	_ bool,
) Result[*bookmark.Bookmark] {
	now := l.now()
	ts := bookmark.Timestamp(now)

	out := b.Clone()
	out.AccountID = acc.ID
	out.IsOwner = true

	existing, err := l.lookup.BookmarkByURL(ctx, acc.ID, b.URL)
	switch {
	case err == nil:
		out.ID = existing.ID
		out.DateAdded = existing.DateAdded
		out.DateModified = ts
	case errors.Is(err, db.ErrRecordNotFound):
		out.ID = 0
		out.DateAdded = ts
		out.DateModified = ts
		l.scrape(ctx, out)
	default:
		return failure[*bookmark.Bookmark](err, now)
	}

	return success(out, now)
}

func (l *Local) scrape(ctx context.Context, b *bookmark.Bookmark) {
	if l.scraper == nil || b.Title != "" || b.WebsiteTitle != "" {
		return
	}

	title, desc, err := l.scraper.Metadata(ctx, b.URL)
	if err != nil {
		slog.Warn("scraping metadata", "url", b.URL, "error", err)
		return
	}

	b.WebsiteTitle = title
	b.WebsiteDescription = desc
}

func (l *Local) RemoveBookmark(context.Context, *account.Account, *bookmark.Bookmark) Result[struct{}] {
	return success(struct{}{}, l.now())
}

func (l *Local) FetchAccountDetails(context.Context, *account.Account) Result[*account.Account] {
	return success[*account.Account](nil, l.now())
}

func (l *Local) Version(context.Context, *account.Account) Result[string] {
	return success(l.version, l.now())
}

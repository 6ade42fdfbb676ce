package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/linkding"
)

// API is the remote bookmark service used by Remote.
type API interface {
	Bookmarks(ctx context.Context) (*linkding.Response[[]linkding.Bookmark], error)
	Archived(ctx context.Context) (*linkding.Response[[]linkding.Bookmark], error)
	Shared(ctx context.Context) (*linkding.Response[[]linkding.Bookmark], error)
	Check(ctx context.Context, url string, disableScraping bool) (*linkding.Response[*linkding.CheckResult], error)
	Create(ctx context.Context, w *linkding.BookmarkWrite) (*linkding.Response[*linkding.Bookmark], error)
	Update(ctx context.Context, id int64, w *linkding.BookmarkWrite) (*linkding.Response[*linkding.Bookmark], error)
	Delete(ctx context.Context, id int64) (time.Time, error)
	Profile(ctx context.Context) (*linkding.Response[*linkding.Profile], error)
}

// ClientFactory builds the API client for one account.
type ClientFactory func(acc *account.Account) API

// LinkdingFactory returns a factory building linkding clients with opts.
func LinkdingFactory(opts ...linkding.Option) ClientFactory {
	return func(acc *account.Account) API {
		return linkding.New(acc.Instance, acc.APIToken, acc.TrustInvalidCerts, opts...)
	}
}

// Remote talks to a linkding instance.
type Remote struct {
	client ClientFactory
	now    func() time.Time
}

// NewRemote returns the remote provider.
func NewRemote(f ClientFactory) *Remote {
	return &Remote{client: f, now: time.Now}
}

type listing struct {
	name  string
	owner bool
	call  func(context.Context) (*linkding.Response[[]linkding.Bookmark], error)
}

// FetchBookmarks merges the active, archived and shared listings. Rows are
// deduplicated by remote id, the first listing to report an id wins. The
// fetch fails as a whole if any listing fails.
func (r *Remote) FetchBookmarks(ctx context.Context, acc *account.Account) Result[[]*bookmark.Bookmark] {
	api := r.client(acc)

	ls := []listing{
		{name: "active", owner: true, call: api.Bookmarks},
		{name: "archived", owner: true, call: api.Archived},
	}
	if acc.SupportsSharedListing() {
		ls = append(ls, listing{name: "shared", owner: false, call: api.Shared})
	} else {
		slog.Warn("skipping shared listing", "account", acc.ID, "version", acc.ProviderVersion)
	}

	var (
		at   time.Time
		seen = make(map[int64]struct{})
		out  = make([]*bookmark.Bookmark, 0)
	)

	for _, l := range ls {
		res, err := l.call(ctx)
		if err != nil {
			slog.Error("listing bookmarks", "account", acc.ID, "listing", l.name, "error", err)
			return failure[[]*bookmark.Bookmark](fmt.Errorf("%s bookmarks of %q: %w", l.name, acc.DisplayName, err), r.now())
		}

		if at.IsZero() {
			at = res.Date
		}

		for i := range res.Data {
			lb := &res.Data[i]
			if _, ok := seen[lb.ID]; ok {
				continue
			}
			seen[lb.ID] = struct{}{}

			b := fromRemote(acc.ID, lb)
			b.IsOwner = l.owner
			out = append(out, b)
		}
	}

	slog.Info("fetched bookmarks", "account", acc.ID, "count", len(out))

	return success(out, at)
}

// PopulateBookmark pushes b to the instance. A bookmark with a remote id is
// updated. Otherwise, with checkRemote set, a bookmark already stored
// remotely for the same URL is overwritten with the local fields; failing
// that a new one is created.
func (r *Remote) PopulateBookmark(
	ctx context.Context,
	acc *account.Account,
	b *bookmark.Bookmark,
	checkRemote bool,
) Result[*bookmark.Bookmark] {
	api := r.client(acc)
	w := toWrite(b)

	remoteID := b.RemoteID()
	if !b.HasRemoteID() && checkRemote {
		res, err := api.Check(ctx, b.URL, true)
		if err != nil {
			return failure[*bookmark.Bookmark](fmt.Errorf("checking %q: %w", b.URL, err), r.now())
		}

		if res.Data.Bookmark != nil {
			remoteID = res.Data.Bookmark.ID
			slog.Debug("bookmark exists remotely", "url", b.URL, "remote_id", remoteID)
		}
	}

	var (
		res *linkding.Response[*linkding.Bookmark]
		err error
	)
	if remoteID != 0 {
		res, err = api.Update(ctx, remoteID, w)
	} else {
		res, err = api.Create(ctx, w)
	}
	if err != nil {
		return failure[*bookmark.Bookmark](fmt.Errorf("saving %q: %w", b.URL, err), r.now())
	}

	out := fromRemote(acc.ID, res.Data)
	out.ID = b.ID
	out.IsOwner = true

	return success(out, res.Date)
}

// RemoveBookmark deletes b on the instance. A bookmark never pushed has
// nothing to delete.
func (r *Remote) RemoveBookmark(ctx context.Context, acc *account.Account, b *bookmark.Bookmark) Result[struct{}] {
	if !b.HasRemoteID() {
		return success(struct{}{}, r.now())
	}

	at, err := r.client(acc).Delete(ctx, b.RemoteID())
	if err != nil {
		return failure[struct{}](fmt.Errorf("removing %q: %w", b.URL, err), r.now())
	}

	return success(struct{}{}, at)
}

// FetchAccountDetails probes the profile endpoint. A 401 surfaces as
// linkding.ErrUnauthorized in Err.
func (r *Remote) FetchAccountDetails(ctx context.Context, acc *account.Account) Result[*account.Account] {
	res, err := r.client(acc).Profile(ctx)
	if err != nil {
		return failure[*account.Account](fmt.Errorf("profile of %q: %w", acc.DisplayName, err), r.now())
	}

	out := *acc
	out.EnableSharing = res.Data.EnableSharing
	out.EnablePublicSharing = res.Data.EnablePublicSharing
	if res.Data.Version != "" {
		out.ProviderVersion = account.NormalizeVersion(res.Data.Version)
	}

	return success(&out, res.Date)
}

// Version reads the instance version from the profile response.
func (r *Remote) Version(ctx context.Context, acc *account.Account) Result[string] {
	res, err := r.client(acc).Profile(ctx)
	if err != nil {
		return failure[string](err, r.now())
	}

	return success(account.NormalizeVersion(res.Data.Version), res.Date)
}

func fromRemote(accountID int64, lb *linkding.Bookmark) *bookmark.Bookmark {
	b := &bookmark.Bookmark{
		AccountID:             accountID,
		URL:                   lb.URL,
		Title:                 lb.Title,
		Description:           lb.Description,
		Notes:                 lb.Notes,
		WebsiteTitle:          lb.WebsiteTitle,
		WebsiteDescription:    lb.WebsiteDescription,
		WebArchiveSnapshotURL: lb.WebArchiveSnapshotURL,
		FaviconURL:            lb.FaviconURL,
		PreviewImageURL:       lb.PreviewImageURL,
		TagNames:              bookmark.Tags(slices.Clone(lb.TagNames)),
		IsArchived:            lb.IsArchived,
		Unread:                lb.Unread,
		Shared:                lb.Shared,
		DateAdded:             lb.DateAdded,
		DateModified:          lb.DateModified,
	}
	if b.TagNames == nil {
		b.TagNames = bookmark.Tags{}
	}
	b.SetRemoteID(lb.ID)

	return b
}

func toWrite(b *bookmark.Bookmark) *linkding.BookmarkWrite {
	tags := slices.Clone([]string(b.TagNames))
	if tags == nil {
		tags = []string{}
	}

	return &linkding.BookmarkWrite{
		URL:         b.URL,
		Title:       b.Title,
		Description: b.Description,
		Notes:       b.Notes,
		IsArchived:  b.IsArchived,
		Unread:      b.Unread,
		Shared:      b.Shared,
		TagNames:    tags,
	}
}

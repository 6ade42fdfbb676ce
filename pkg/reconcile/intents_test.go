//nolint:wsl,funlen //test
package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/linkding"
	"github.com/vkhitrin/cosmicding-sub000/pkg/provider"
)

func importItems(n int) []*bookmark.Bookmark {
	items := make([]*bookmark.Bookmark, 0, n)
	for i := range n {
		items = append(items, bookmark.New(0, fmt.Sprintf("https://import.example.com/%d", i), fmt.Sprintf("item %d", i)))
	}

	return items
}

func TestImportCancelledAfterSecondItem(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	a := h.remoteAccount(t, "bulk")

	h.remote.populate = func(n int, b *bookmark.Bookmark) provider.Result[*bookmark.Bookmark] {
		if n == 2 {
			// the user cancels while item 2 is in flight
			h.sess.CancelOperation()
		}
		out := b.Clone()
		out.SetRemoteID(int64(n))

		return provider.Result[*bookmark.Bookmark]{Successful: true, Payload: out}
	}

	rep, err := h.engine.Import(ctx, a.ID, importItems(5))
	require.ErrorIs(t, err, ErrImportCancelled)

	assert.Equal(t, 2, rep.Imported)
	assert.Equal(t, 3, rep.Skipped)
	assert.Equal(t, 5, rep.Total)
	assert.True(t, rep.Cancelled)
	assert.NotZero(t, rep.BatchID)
	assert.Equal(t, 2, h.remote.populated)

	stored, err := h.store.AccountBookmarks(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	require.NotEmpty(t, h.rec.notices)
	last := h.rec.notices[len(h.rec.notices)-1]
	assert.Equal(t, "imported 2 of 5 bookmarks, 3 cancelled", last.Text)
	assert.Equal(t, LevelWarn, last.Level)

	assert.Zero(t, h.sess.OperationID())
	assert.Equal(t, Progress{}, h.rec.progress[len(h.rec.progress)-1])
	for _, p := range h.rec.progress[:len(h.rec.progress)-1] {
		assert.True(t, p.Cancellable)
		assert.Equal(t, 5, p.Total)
	}
}

func TestImportStopsOnItemFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	a := h.remoteAccount(t, "bulk")
	items := importItems(5)

	h.remote.populate = func(n int, b *bookmark.Bookmark) provider.Result[*bookmark.Bookmark] {
		if n == 3 {
			return provider.Result[*bookmark.Bookmark]{Err: &linkding.StatusError{Code: 400, Body: "bad url"}}
		}
		out := b.Clone()
		out.SetRemoteID(int64(n))

		return provider.Result[*bookmark.Bookmark]{Successful: true, Payload: out}
	}

	rep, err := h.engine.Import(ctx, a.ID, items)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Imported)
	assert.Equal(t, items[2].URL, rep.Failed)
	assert.Equal(t, 2, rep.Skipped)
	assert.True(t, rep.Cancelled)
	assert.Equal(t, 3, h.remote.populated)

	// one notice for the failed item plus the summary
	require.Len(t, h.rec.notices, 2)
	assert.Equal(t, LevelError, h.rec.notices[0].Level)
	assert.Contains(t, h.rec.notices[0].String(), "bad url")
}

func TestImportCompletes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	a := h.remoteAccount(t, "bulk")

	rep, err := h.engine.Import(t.Context(), a.ID, importItems(3))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Imported)
	assert.False(t, rep.Cancelled)
	assert.Equal(t, "imported 3 bookmarks", rep.String())
	assert.Equal(t, 3, h.sess.Bookmarks.TotalEntries)

	_, err = h.engine.Import(t.Context(), 999, importItems(1))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestImportBatchIDFollowsClock(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	h := newHarness(t, WithClock(func() time.Time { return at }))
	a := h.remoteAccount(t, "clock")

	rep, err := h.engine.Import(t.Context(), a.ID, importItems(1))
	require.NoError(t, err)
	assert.Equal(t, at.UnixNano(), rep.BatchID)
	assert.Zero(t, h.sess.OperationID())
}

func TestAddAccount(t *testing.T) {
	t.Parallel()

	t.Run("probe fills capabilities and refreshes", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.remote.details = &provider.Result[*account.Account]{
			Successful: true,
			Payload:    &account.Account{EnableSharing: true, EnablePublicSharing: true, ProviderVersion: "1.30.0"},
		}

		a := account.NewRemote("new", "https://New.Example.com/", "tok")
		require.NoError(t, h.engine.AddAccount(t.Context(), a, true))
		require.NotZero(t, a.ID)

		got, err := h.store.AccountByID(t.Context(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://new.example.com", got.Instance)
		assert.True(t, got.EnableSharing)
		assert.Equal(t, "1.30.0", got.ProviderVersion)
		assert.Equal(t, []int64{a.ID}, h.remote.fetched)
		assert.Equal(t, Ready, h.sess.State())
	})

	t.Run("duplicate is rejected before any network call", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.remoteAccount(t, "dup")

		a := account.NewRemote("again", "https://dup.example.com", "tok-dup")
		err := h.engine.AddAccount(t.Context(), a, true)
		assert.ErrorIs(t, err, account.ErrDuplicate)
		assert.ErrorIs(t, err, account.ErrValidation)
		assert.Zero(t, h.remote.detailCalls)
		n, err := h.store.CountAccounts(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		err := h.engine.AddAccount(t.Context(), account.NewRemote("", "https://x.example.com", "t"), true)
		assert.ErrorIs(t, err, account.ErrValidation)
		assert.Zero(t, h.remote.detailCalls)
	})

	t.Run("unauthorized probe stores nothing", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.remote.details = &provider.Result[*account.Account]{Err: &linkding.StatusError{Code: 401}}

		err := h.engine.AddAccount(t.Context(), account.NewRemote("nope", "https://nope.example.com", "bad"), true)
		assert.ErrorIs(t, err, linkding.ErrUnauthorized)
		assert.ErrorIs(t, err, ErrProvider)
		n, err := h.store.CountAccounts(t.Context())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("local account gets the app version", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		a := account.NewLocal("offline")
		require.NoError(t, h.engine.AddAccount(t.Context(), a, true))
		assert.Equal(t, "0.1.0", a.ProviderVersion)
		assert.Empty(t, h.remote.fetched)
		assert.Equal(t, NoEnabledRemoteAccounts, h.sess.State())
	})
}

func TestEditAccount(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	a := h.remoteAccount(t, "edit")
	require.NoError(t, h.store.UpdateAccountSync(ctx, a.ID, true, 500))

	renamed := *a
	renamed.DisplayName = "renamed"
	require.NoError(t, h.engine.EditAccount(ctx, &renamed))
	assert.Empty(t, h.remote.fetched, "a rename does not refresh")

	got, err := h.store.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.DisplayName)
	assert.EqualValues(t, 500, got.LastSyncTimestamp)

	moved := *got
	moved.APIToken = "rotated"
	require.NoError(t, h.engine.EditAccount(ctx, &moved))
	assert.Equal(t, 1, h.remote.detailCalls)
	assert.Equal(t, []int64{a.ID}, h.remote.fetched)

	other := h.remoteAccount(t, "other")
	clash := *other
	clash.APIToken = "rotated"
	clash.Instance = moved.Instance
	assert.ErrorIs(t, h.engine.EditAccount(ctx, &clash), account.ErrDuplicate)

	off := moved
	off.Enabled = false
	require.NoError(t, h.engine.EditAccount(ctx, &off))
	assert.Equal(t, Ready, h.sess.State(), "other account is still enabled")

	missing := *a
	missing.ID = 12345
	assert.ErrorIs(t, h.engine.EditAccount(ctx, &missing), ErrAccountNotFound)
}

func TestRemoveAccount(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	a := h.remoteAccount(t, "gone")
	require.NoError(t, h.store.ReplaceAccountBookmarks(ctx, a.ID, remoteBookmarks("gone", 1, 2)))

	require.NoError(t, h.engine.RemoveAccount(ctx, a.ID))
	n, err := h.store.CountBookmarks(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, NoEnabledRemoteAccounts, h.sess.State())
	assert.Zero(t, h.sess.Accounts.TotalEntries)

	assert.ErrorIs(t, h.engine.RemoveAccount(ctx, a.ID), ErrAccountNotFound)
}

func TestBookmarkIntents(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()

	local := account.NewLocal("offline")
	require.NoError(t, h.engine.AddAccount(ctx, local, false))

	b, err := h.engine.AddBookmark(ctx, local.ID, bookmark.New(0, "https://go.dev", "Go", "lang"))
	require.NoError(t, err)
	require.NotZero(t, b.ID)
	assert.Equal(t, "2025-01-01T00:00:00.000000Z", b.DateAdded)
	assert.Equal(t, 1, h.sess.Bookmarks.TotalEntries)

	_, err = h.engine.AddBookmark(ctx, local.ID, bookmark.New(0, "not a url", ""))
	assert.ErrorIs(t, err, bookmark.ErrInvalid)

	// adding the same URL again updates the existing row
	again, err := h.engine.AddBookmark(ctx, local.ID, bookmark.New(0, "https://go.dev", "Go again"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)
	assert.Equal(t, 1, h.sess.Bookmarks.TotalEntries)

	edit := again.Clone()
	edit.Notes = "read later"
	edited, err := h.engine.EditBookmark(ctx, edit)
	require.NoError(t, err)
	stored, err := h.store.BookmarkByID(ctx, edited.ID)
	require.NoError(t, err)
	assert.Equal(t, "read later", stored.Notes)
	assert.Equal(t, b.DateAdded, stored.DateAdded)

	require.NoError(t, h.engine.RemoveBookmark(ctx, b.ID))
	assert.Zero(t, h.sess.Bookmarks.TotalEntries)
	assert.ErrorIs(t, h.engine.RemoveBookmark(ctx, b.ID), bookmark.ErrNotFound)
}

func TestSharedBookmarksAreReadOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	a := h.remoteAccount(t, "shared")

	bs := remoteBookmarks("shared", 1)
	bs[0].IsOwner = false
	require.NoError(t, h.store.ReplaceAccountBookmarks(ctx, a.ID, bs))

	_, err := h.engine.EditBookmark(ctx, bs[0])
	assert.ErrorIs(t, err, bookmark.ErrNotOwner)
	assert.ErrorIs(t, h.engine.RemoveBookmark(ctx, bs[0].ID), bookmark.ErrNotOwner)
	assert.Zero(t, h.remote.populated)
}

func TestRemoteBookmarkRoundTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	a := h.remoteAccount(t, "remote")

	b, err := h.engine.AddBookmark(ctx, a.ID, bookmark.New(0, "https://pkg.go.dev", "pkg"))
	require.NoError(t, err)
	assert.EqualValues(t, 1001, b.RemoteID())

	// a provider answer carrying a known remote id updates that row
	h.remote.populate = func(_ int, in *bookmark.Bookmark) provider.Result[*bookmark.Bookmark] {
		out := in.Clone()
		out.ID = 0
		out.SetRemoteID(1001)

		return provider.Result[*bookmark.Bookmark]{Successful: true, Payload: out}
	}
	dup, err := h.engine.AddBookmark(ctx, a.ID, bookmark.New(0, "https://pkg.go.dev", "pkg v2"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, dup.ID)

	h.remote.removeErr = &linkding.StatusError{Code: 500}
	err = h.engine.RemoveBookmark(ctx, b.ID)
	assert.ErrorIs(t, err, ErrProvider)
	_, err = h.store.BookmarkByID(ctx, b.ID)
	assert.NoError(t, err, "row survives a failed remote delete")
}

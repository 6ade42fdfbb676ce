//nolint:wsl,funlen //test
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
	"github.com/vkhitrin/cosmicding-sub000/pkg/linkding"
	"github.com/vkhitrin/cosmicding-sub000/pkg/provider"
)

var testDBSeq atomic.Int64

func setupStore(t *testing.T) *db.SQLite {
	t.Helper()
	dsn := fmt.Sprintf("file:reconcile_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBSeq.Add(1))
	sqlDB, err := db.OpenDatabase(dsn)
	require.NoError(t, err)

	r := db.NewFromDB(sqlDB, "reconcile")
	t.Cleanup(r.Close)
	require.NoError(t, r.Migrate(t.Context()))

	return r
}

// scriptedProvider answers from canned results and records the calls.
type scriptedProvider struct {
	mu          sync.Mutex
	fetch       map[int64]provider.Result[[]*bookmark.Bookmark]
	fetched     []int64
	populate    func(n int, b *bookmark.Bookmark) provider.Result[*bookmark.Bookmark]
	populated   int
	details     *provider.Result[*account.Account]
	detailCalls int
	removeErr   error
}

func (p *scriptedProvider) FetchBookmarks(_ context.Context, acc *account.Account) provider.Result[[]*bookmark.Bookmark] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, acc.ID)
	if r, ok := p.fetch[acc.ID]; ok {
		return r
	}

	return provider.Result[[]*bookmark.Bookmark]{Successful: true, Payload: []*bookmark.Bookmark{}}
}

func (p *scriptedProvider) PopulateBookmark(
	_ context.Context,
	_ *account.Account,
	b *bookmark.Bookmark,
	_ bool,
) provider.Result[*bookmark.Bookmark] {
	p.mu.Lock()
	p.populated++
	n := p.populated
	fn := p.populate
	p.mu.Unlock()

	if fn != nil {
		return fn(n, b)
	}
	out := b.Clone()
	out.SetRemoteID(int64(1000 + n))

	return provider.Result[*bookmark.Bookmark]{Successful: true, Payload: out}
}

func (p *scriptedProvider) RemoveBookmark(context.Context, *account.Account, *bookmark.Bookmark) provider.Result[struct{}] {
	if p.removeErr != nil {
		return provider.Result[struct{}]{Err: p.removeErr}
	}

	return provider.Result[struct{}]{Successful: true}
}

func (p *scriptedProvider) FetchAccountDetails(_ context.Context, acc *account.Account) provider.Result[*account.Account] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detailCalls++
	if p.details != nil {
		return *p.details
	}
	out := *acc

	return provider.Result[*account.Account]{Successful: true, Payload: &out}
}

func (p *scriptedProvider) Version(context.Context, *account.Account) provider.Result[string] {
	return provider.Result[string]{Successful: true, Payload: "1.36.0"}
}

type recorder struct {
	mu       sync.Mutex
	progress []Progress
	notices  []Notice
}

func (r *recorder) onProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) onNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

type harness struct {
	store  *db.SQLite
	remote *scriptedProvider
	rec    *recorder
	engine *Engine
	sess   *Session
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := setupStore(t)
	remote := &scriptedProvider{fetch: make(map[int64]provider.Result[[]*bookmark.Bookmark])}
	reg := provider.Registry{
		account.ProviderLinkding: remote,
		account.ProviderLocal: provider.NewLocal(store, "0.1.0", provider.WithLocalClock(func() time.Time {
			return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		})),
	}
	rec := &recorder{}
	sess := NewSession(store, 10, bookmark.SortNewest)
	opts = append([]Option{WithProgress(rec.onProgress), WithNotifier(rec.onNotice)}, opts...)

	return &harness{
		store:  store,
		remote: remote,
		rec:    rec,
		engine: New(store, reg, sess, opts...),
		sess:   sess,
	}
}

func (h *harness) remoteAccount(t *testing.T, name string) *account.Account {
	t.Helper()
	a := account.NewRemote(name, "https://"+name+".example.com", "tok-"+name)
	_, err := h.store.InsertAccount(t.Context(), a)
	require.NoError(t, err)

	return a
}

func remoteBookmarks(prefix string, ids ...int64) []*bookmark.Bookmark {
	out := make([]*bookmark.Bookmark, 0, len(ids))
	for _, id := range ids {
		b := bookmark.New(0, fmt.Sprintf("https://%s.example.org/%d", prefix, id), fmt.Sprintf("%s %d", prefix, id))
		b.SetRemoteID(id)
		b.DateAdded = "2024-05-01T00:00:00.000000Z"
		out = append(out, b)
	}

	return out
}

func TestRefreshAllPartialFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()

	a1 := h.remoteAccount(t, "one")
	a2 := h.remoteAccount(t, "two")
	a3 := h.remoteAccount(t, "three")

	prior := remoteBookmarks("old", 1, 2)
	require.NoError(t, h.store.ReplaceAccountBookmarks(ctx, a2.ID, prior))

	h.remote.fetch[a1.ID] = provider.Result[[]*bookmark.Bookmark]{
		Successful: true, Payload: remoteBookmarks("one", 1, 2, 3), Timestamp: 1000,
	}
	h.remote.fetch[a2.ID] = provider.Result[[]*bookmark.Bookmark]{
		Err:       &linkding.NetworkError{Op: "GET /api/bookmarks/", Err: fmt.Errorf("connection refused")},
		Timestamp: 2000,
	}
	h.remote.fetch[a3.ID] = provider.Result[[]*bookmark.Bookmark]{
		Successful: true, Payload: remoteBookmarks("three", 9), Timestamp: 3000,
	}

	require.NoError(t, h.engine.RefreshAll(ctx))

	assert.Equal(t, []int64{a1.ID, a2.ID, a3.ID}, h.remote.fetched)
	require.Len(t, h.rec.progress, 3)
	assert.Equal(t, Progress{Current: 3, Total: 3, Label: "three"}, h.rec.progress[2])
	assert.Equal(t, 1, h.rec.progress[0].Current)

	got1, err := h.store.AccountByID(ctx, a1.ID)
	require.NoError(t, err)
	assert.True(t, got1.LastSyncStatus)
	assert.EqualValues(t, 1000, got1.LastSyncTimestamp)

	got2, err := h.store.AccountByID(ctx, a2.ID)
	require.NoError(t, err)
	assert.False(t, got2.LastSyncStatus)
	assert.EqualValues(t, 2000, got2.LastSyncTimestamp)

	kept, err := h.store.AccountBookmarks(ctx, a2.ID)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, prior[0].URL, kept[0].URL)

	got3, err := h.store.AccountByID(ctx, a3.ID)
	require.NoError(t, err)
	assert.True(t, got3.LastSyncStatus)
	assert.EqualValues(t, 3000, got3.LastSyncTimestamp)

	fresh, err := h.store.AccountBookmarks(ctx, a1.ID)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)

	// one notice for the failed account only
	require.Len(t, h.rec.notices, 1)
	assert.Equal(t, a2.ID, h.rec.notices[0].AccountID)
	assert.Equal(t, LevelWarn, h.rec.notices[0].Level)

	assert.Equal(t, Ready, h.sess.State())
	assert.True(t, h.sess.Synced())
	assert.Equal(t, 6, h.sess.Bookmarks.TotalEntries)
	assert.Equal(t, 3, h.sess.Accounts.TotalEntries)
}

func TestRefreshAllWithoutRemoteAccounts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()

	local := account.NewLocal("offline")
	_, err := h.store.InsertAccount(ctx, local)
	require.NoError(t, err)
	disabled := account.NewRemote("off", "https://off.example.com", "t")
	disabled.Enabled = false
	_, err = h.store.InsertAccount(ctx, disabled)
	require.NoError(t, err)

	require.NoError(t, h.engine.RefreshAll(ctx))
	assert.Equal(t, NoEnabledRemoteAccounts, h.sess.State())
	assert.Empty(t, h.remote.fetched)
	assert.Empty(t, h.rec.progress)
	assert.False(t, h.sess.Synced())
}

func TestRefreshAllSnapshotsAccounts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()

	a1 := h.remoteAccount(t, "first")
	var late *account.Account
	h.remote.fetch[a1.ID] = provider.Result[[]*bookmark.Bookmark]{Successful: true, Payload: remoteBookmarks("first", 1)}

	// an account added while the run is in progress is not part of it
	h.engine.progress = func(Progress) {
		if late == nil {
			late = account.NewRemote("late", "https://late.example.com", "t")
			_, err := h.store.InsertAccount(ctx, late)
			assert.NoError(t, err)
		}
	}

	require.NoError(t, h.engine.RefreshAll(ctx))
	assert.Equal(t, []int64{a1.ID}, h.remote.fetched)
}

func TestRefreshOne(t *testing.T) {
	t.Parallel()

	t.Run("no-op while refreshing", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		a := h.remoteAccount(t, "busy")
		_, ok := h.sess.beginRefresh()
		require.True(t, ok)

		assert.ErrorIs(t, h.engine.RefreshOne(t.Context(), a.ID), ErrRefreshInProgress)
		assert.ErrorIs(t, h.engine.RefreshAll(t.Context()), ErrRefreshInProgress)
		assert.Empty(t, h.remote.fetched)
		assert.Equal(t, Refreshing, h.sess.State())
	})

	t.Run("refreshes one account", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		a := h.remoteAccount(t, "solo")
		other := h.remoteAccount(t, "other")
		h.remote.fetch[a.ID] = provider.Result[[]*bookmark.Bookmark]{
			Successful: true, Payload: remoteBookmarks("solo", 4, 5), Timestamp: 77,
		}

		require.NoError(t, h.engine.RefreshOne(t.Context(), a.ID))
		assert.Equal(t, []int64{a.ID}, h.remote.fetched)
		assert.Equal(t, Ready, h.sess.State())

		got, err := h.store.AccountByID(t.Context(), a.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 77, got.LastSyncTimestamp)

		untouched, err := h.store.AccountByID(t.Context(), other.ID)
		require.NoError(t, err)
		assert.Zero(t, untouched.LastSyncTimestamp)
	})

	t.Run("disabled account settles state", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		a := h.remoteAccount(t, "sleepy")
		a.Enabled = false
		require.NoError(t, h.store.UpdateAccount(t.Context(), a))

		require.NoError(t, h.engine.RefreshOne(t.Context(), a.ID))
		assert.Empty(t, h.remote.fetched)
		assert.Equal(t, NoEnabledRemoteAccounts, h.sess.State())

		h.remoteAccount(t, "awake")
		require.NoError(t, h.engine.RefreshOne(t.Context(), a.ID))
		assert.Empty(t, h.remote.fetched)
		assert.Equal(t, Ready, h.sess.State())
	})

	t.Run("missing account", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		assert.ErrorIs(t, h.engine.RefreshOne(t.Context(), 404), ErrAccountNotFound)
		assert.Equal(t, Loading, h.sess.State())
	})
}

func TestStartProbesThenRefreshes(t *testing.T) {
	t.Parallel()
	var slept []time.Duration
	h := newHarness(t, WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))
	ctx := t.Context()

	a := h.remoteAccount(t, "probe")
	bad := h.remoteAccount(t, "bad")

	h.remote.details = nil
	calls := 0
	h.engine.providers = provider.Registry{account.ProviderLinkding: &probeProvider{
		scriptedProvider: h.remote,
		detailsFor: func(acc *account.Account) provider.Result[*account.Account] {
			calls++
			if acc.ID == bad.ID {
				return provider.Result[*account.Account]{Err: &linkding.StatusError{Code: 401}}
			}
			out := *acc
			out.EnableSharing = true
			out.ProviderVersion = "1.36.0"

			return provider.Result[*account.Account]{Successful: true, Payload: &out}
		},
	}}

	require.NoError(t, h.engine.Start(ctx))

	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{DefaultStartupDelay}, slept)
	assert.Equal(t, []int64{a.ID, bad.ID}, h.remote.fetched)

	got, err := h.store.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.EnableSharing)
	assert.Equal(t, "1.36.0", got.ProviderVersion)

	require.NotEmpty(t, h.rec.notices)
	assert.Equal(t, LevelAuth, h.rec.notices[0].Level)
	assert.Equal(t, bad.ID, h.rec.notices[0].AccountID)
}

type probeProvider struct {
	*scriptedProvider
	detailsFor func(*account.Account) provider.Result[*account.Account]
}

func (p *probeProvider) FetchAccountDetails(_ context.Context, acc *account.Account) provider.Result[*account.Account] {
	return p.detailsFor(acc)
}

type stubFavicons struct {
	mu   sync.Mutex
	urls []string
}

func (s *stubFavicons) Schedule(_ context.Context, urls ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, urls...)

	return len(urls)
}

func TestReloadSchedulesFavicons(t *testing.T) {
	t.Parallel()
	fav := &stubFavicons{}
	h := newHarness(t, WithFavicons(fav))
	a := h.remoteAccount(t, "icons")
	bs := remoteBookmarks("icons", 1, 2)
	bs[0].FaviconURL = "https://icons.example.org/favicon.ico"
	h.remote.fetch[a.ID] = provider.Result[[]*bookmark.Bookmark]{Successful: true, Payload: bs}

	require.NoError(t, h.engine.RefreshAll(t.Context()))
	assert.Equal(t, []string{"https://icons.example.org/favicon.ico"}, fav.urls)
}

func TestPagingThroughEngine(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	a := h.remoteAccount(t, "pages")
	require.NoError(t, h.store.ReplaceAccountBookmarks(ctx, a.ID, remoteBookmarks("pages", 1, 2, 3, 4, 5)))

	require.NoError(t, h.engine.SetItemsPerPage(ctx, 2))
	assert.Equal(t, 3, h.sess.Bookmarks.TotalPages)

	require.NoError(t, h.engine.GoToPage(ctx, 2))
	assert.Len(t, h.sess.Bookmarks.Result, 1)

	require.NoError(t, h.engine.Search(ctx, "pages 3"))
	assert.Equal(t, 1, h.sess.Bookmarks.TotalEntries)
	assert.Equal(t, 1, h.sess.Bookmarks.CurrentPage)

	require.NoError(t, h.engine.SetSort(ctx, bookmark.SortTitleDesc))
	assert.Equal(t, bookmark.SortTitleDesc, h.sess.Bookmarks.Sort)

	assert.Error(t, h.engine.SetItemsPerPage(ctx, 0))
}

// Package reconcile drives providers and keeps the local store consistent
// with each account's backing source.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
	"github.com/vkhitrin/cosmicding-sub000/pkg/linkding"
	"github.com/vkhitrin/cosmicding-sub000/pkg/provider"
)

// DefaultStartupDelay separates the startup profile probe from the first
// refresh.
const DefaultStartupDelay = time.Second

// Store is the persistent state the engine reads and mutates.
type Store interface {
	Source
	ListEnabledAccounts(ctx context.Context) ([]*account.Account, error)
	AccountByID(ctx context.Context, id int64) (*account.Account, error)
	AccountExists(ctx context.Context, instance, token string) (bool, error)
	InsertAccount(ctx context.Context, a *account.Account) (int64, error)
	UpdateAccount(ctx context.Context, a *account.Account) error
	UpdateAccountSync(ctx context.Context, id int64, ok bool, ts int64) error
	DeleteAccount(ctx context.Context, id int64) error
	ReplaceAccountBookmarks(ctx context.Context, accountID int64, bs []*bookmark.Bookmark) error
	BookmarkByID(ctx context.Context, id int64) (*bookmark.Bookmark, error)
	BookmarkByRemoteID(ctx context.Context, accountID, remoteID int64) (*bookmark.Bookmark, error)
	InsertBookmark(ctx context.Context, b *bookmark.Bookmark) (int64, error)
	UpdateBookmark(ctx context.Context, b *bookmark.Bookmark) error
	DeleteBookmark(ctx context.Context, id int64) error
}

// Resolver picks the provider serving an account.
type Resolver interface {
	For(acc *account.Account) (provider.Provider, error)
}

// FaviconScheduler refreshes favicons of rendered bookmarks.
type FaviconScheduler interface {
	Schedule(ctx context.Context, urls ...string) int
}

type Option func(*Engine)

// WithProgress receives a Progress after each processed item.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithNotifier receives user-facing notices.
func WithNotifier(fn func(Notice)) Option {
	return func(e *Engine) {
		e.notify = fn
	}
}

// WithFavicons schedules favicon refreshes for every fetched bookmark page.
func WithFavicons(f FaviconScheduler) Option {
	return func(e *Engine) {
		e.favicons = f
	}
}

// WithStartupDelay sets the wait between the profile probe and the first
// refresh.
func WithStartupDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.startupDelay = d
	}
}

// WithSleep replaces the startup wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine serializes every store mutation: no two refreshes, imports or
// intents interleave.
type Engine struct {
	mu        sync.Mutex
	store     Store
	providers Resolver
	session   *Session
	favicons  FaviconScheduler

	progress     func(Progress)
	notify       func(Notice)
	startupDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// New returns an engine bound to session.
func New(store Store, providers Resolver, session *Session, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		providers:    providers,
		session:      session,
		progress:     func(Progress) {},
		notify:       func(Notice) {},
		startupDelay: DefaultStartupDelay,
		sleep:        sleepCtx,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Session returns the session the engine drives.
func (e *Engine) Session() *Session {
	return e.session
}

// Start probes the profile of every enabled remote account, waits the
// startup delay and refreshes all accounts.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	accs, err := e.enabledRemote(ctx)
	if err == nil {
		for _, a := range accs {
			if err = e.probe(ctx, a); err != nil {
				break
			}
		}
	}
	e.mu.Unlock()

	if err != nil {
		return err
	}

	if err := e.sleep(ctx, e.startupDelay); err != nil {
		return err
	}

	return e.RefreshAll(ctx)
}

// probe stores the capability flags and version reported by the account's
// profile. A failed probe is a notice, not an error.
func (e *Engine) probe(ctx context.Context, a *account.Account) error {
	p, err := e.providers.For(a)
	if err != nil {
		e.notify(Notice{Level: LevelError, AccountID: a.ID, Text: a.DisplayName, Err: err})
		return nil
	}

	res := p.FetchAccountDetails(ctx, a)
	if !res.Successful {
		e.notifyProviderFailure(a, "checking account "+a.DisplayName, res.Err)
		return nil
	}

	if res.Payload == nil {
		return nil
	}

	d := res.Payload
	if d.EnableSharing == a.EnableSharing &&
		d.EnablePublicSharing == a.EnablePublicSharing &&
		d.ProviderVersion == a.ProviderVersion {
		return nil
	}

	a.EnableSharing = d.EnableSharing
	a.EnablePublicSharing = d.EnablePublicSharing
	a.ProviderVersion = d.ProviderVersion

	return e.store.UpdateAccount(ctx, a)
}

// RefreshAll replaces the bookmarks of every enabled remote account, one
// account at a time, in the order the accounts were listed when the call
// started. A failed fetch keeps the account's previous bookmarks and the
// loop continues. A storage failure stops the run.
func (e *Engine) RefreshAll(ctx context.Context) error {
	prev, ok := e.session.beginRefresh()
	if !ok {
		return ErrRefreshInProgress
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accs, err := e.enabledRemote(ctx)
	if err != nil {
		e.session.setState(prev)
		return err
	}

	if len(accs) == 0 {
		e.session.setState(NoEnabledRemoteAccounts)
		return e.reloadBookmarks(ctx)
	}

	slog.Info("refreshing accounts", "count", len(accs))

	for i, a := range accs {
		if err := e.refreshAccount(ctx, a); err != nil {
			e.session.setState(Ready)
			return errors.Join(err, e.reload(ctx))
		}

		e.progress(Progress{Current: i + 1, Total: len(accs), Label: a.DisplayName})
	}

	e.session.setState(Ready)
	e.session.markSynced()

	return e.reload(ctx)
}

// RefreshOne refreshes a single account. It does nothing while another
// refresh runs. A disabled account is not fetched; the engine state is
// recomputed from the remaining enabled accounts instead.
func (e *Engine) RefreshOne(ctx context.Context, id int64) error {
	prev, ok := e.session.beginRefresh()
	if !ok {
		return ErrRefreshInProgress
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.account(ctx, id)
	if err != nil {
		e.session.setState(prev)
		return err
	}

	if !a.Enabled || !a.IsRemote() {
		if err := e.settleState(ctx); err != nil {
			e.session.setState(prev)
			return err
		}

		return e.reload(ctx)
	}

	err = e.refreshAccount(ctx, a)
	e.session.setState(Ready)
	e.progress(Progress{Current: 1, Total: 1, Label: a.DisplayName})

	return errors.Join(err, e.reload(ctx))
}

// refreshAccount fetches one account and persists the outcome. Only a
// storage failure is returned.
func (e *Engine) refreshAccount(ctx context.Context, a *account.Account) error {
	log := slog.With("account", a.ID, "name", a.DisplayName)

	p, err := e.providers.For(a)
	if err != nil {
		log.Error("resolving provider", "error", err)
		e.notify(Notice{Level: LevelError, AccountID: a.ID, Text: "refreshing " + a.DisplayName, Err: err})

		return e.store.UpdateAccountSync(ctx, a.ID, false, e.now().Unix())
	}

	res := p.FetchBookmarks(ctx, a)
	if !res.Successful {
		log.Error("refresh failed, keeping previous bookmarks", "error", res.Err)
		e.notifyProviderFailure(a, "refreshing "+a.DisplayName, res.Err)

		return e.store.UpdateAccountSync(ctx, a.ID, false, res.Timestamp)
	}

	if err := e.store.ReplaceAccountBookmarks(ctx, a.ID, res.Payload); err != nil {
		log.Error("replacing bookmarks", "error", err)
		e.notify(Notice{Level: LevelError, AccountID: a.ID, Text: "saving bookmarks of " + a.DisplayName, Err: err})

		return errors.Join(err, e.store.UpdateAccountSync(ctx, a.ID, false, res.Timestamp))
	}

	log.Info("account refreshed", "bookmarks", len(res.Payload))

	return e.store.UpdateAccountSync(ctx, a.ID, true, res.Timestamp)
}

func (e *Engine) notifyProviderFailure(a *account.Account, text string, err error) {
	lvl := LevelWarn
	if errors.Is(err, linkding.ErrUnauthorized) {
		lvl = LevelAuth
		text = fmt.Sprintf("invalid credentials for %s", a.DisplayName)
	}

	e.notify(Notice{Level: lvl, AccountID: a.ID, Text: text, Err: err})
}

// enabledRemote snapshots the enabled remote accounts.
func (e *Engine) enabledRemote(ctx context.Context) ([]*account.Account, error) {
	all, err := e.store.ListEnabledAccounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*account.Account, 0, len(all))
	for _, a := range all {
		if a.IsRemote() {
			out = append(out, a)
		}
	}

	return out, nil
}

// settleState picks Ready or NoEnabledRemoteAccounts from the stored
// accounts.
func (e *Engine) settleState(ctx context.Context) error {
	accs, err := e.enabledRemote(ctx)
	if err != nil {
		return err
	}

	if len(accs) == 0 {
		e.session.setState(NoEnabledRemoteAccounts)
	} else {
		e.session.setState(Ready)
	}

	return nil
}

func (e *Engine) account(ctx context.Context, id int64) (*account.Account, error) {
	a, err := e.store.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
		}

		return nil, err
	}

	return a, nil
}

// Reload re-reads both cursors.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.reload(ctx)
}

func (e *Engine) reload(ctx context.Context) error {
	if err := e.session.Accounts.Reload(ctx); err != nil {
		return err
	}

	return e.reloadBookmarks(ctx)
}

func (e *Engine) reloadBookmarks(ctx context.Context) error {
	if err := e.session.Bookmarks.Reload(ctx); err != nil {
		return err
	}

	e.scheduleFavicons(ctx)

	return nil
}

// scheduleFavicons asks the favicon cache to refresh what the current page
// shows.
func (e *Engine) scheduleFavicons(ctx context.Context) {
	if e.favicons == nil {
		return
	}

	urls := make([]string, 0, len(e.session.Bookmarks.Result))
	for _, b := range e.session.Bookmarks.Result {
		if b.FaviconURL != "" {
			urls = append(urls, b.FaviconURL)
		}
	}

	if n := e.favicons.Schedule(ctx, urls...); n > 0 {
		slog.Debug("favicons scheduled", "count", n)
	}
}

// Search sets the bookmark filter and loads its first page.
func (e *Engine) Search(ctx context.Context, query string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Bookmarks.SetQuery(query)

	return e.reloadBookmarks(ctx)
}

// GoToPage loads the bookmark page with the given zero-based index.
func (e *Engine) GoToPage(ctx context.Context, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Bookmarks.SetPage(index)

	return e.reloadBookmarks(ctx)
}

// SetSort changes the bookmark order and reloads the current page.
func (e *Engine) SetSort(ctx context.Context, s bookmark.SortOrder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Bookmarks.Sort = s

	return e.reloadBookmarks(ctx)
}

// SetItemsPerPage changes the page size of both cursors and reloads them.
func (e *Engine) SetItemsPerPage(ctx context.Context, n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.session.Accounts.SetItemsPerPage(n); err != nil {
		return err
	}

	if err := e.session.Bookmarks.SetItemsPerPage(n); err != nil {
		return err
	}

	return e.reload(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

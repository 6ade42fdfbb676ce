package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
)

// AddAccount validates and stores a new account, then refreshes it. With
// probe set, a remote account is checked against its profile first and
// nothing is stored if the check fails.
func (e *Engine) AddAccount(ctx context.Context, a *account.Account, probe bool) error {
	if err := account.Normalize(a); err != nil {
		return err
	}

	e.mu.Lock()
	err := e.addAccount(ctx, a, probe)
	e.mu.Unlock()

	if err != nil {
		return err
	}

	slog.Info("account added", "id", a.ID, "instance", a.Instance)
	e.notify(Notice{Level: LevelInfo, AccountID: a.ID, Text: "added account " + a.DisplayName})

	return e.afterAccountChange(ctx, a)
}

func (e *Engine) addAccount(ctx context.Context, a *account.Account, probe bool) error {
	exists, err := e.store.AccountExists(ctx, a.Instance, a.APIToken)
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf("%w: %s", account.ErrDuplicate, a.Instance)
	}

	if err := e.fillDetails(ctx, a, probe); err != nil {
		return err
	}

	_, err = e.store.InsertAccount(ctx, a)

	return err
}

// fillDetails copies the provider's capability flags and version into a.
func (e *Engine) fillDetails(ctx context.Context, a *account.Account, probe bool) error {
	p, err := e.providers.For(a)
	if err != nil {
		return err
	}

	if !a.IsRemote() {
		a.ProviderVersion = p.Version(ctx, a).Payload
		return nil
	}

	if !probe {
		return nil
	}

	res := p.FetchAccountDetails(ctx, a)
	if !res.Successful {
		return errors.Join(ErrProvider, res.Err)
	}

	if d := res.Payload; d != nil {
		a.EnableSharing = d.EnableSharing
		a.EnablePublicSharing = d.EnablePublicSharing
		a.ProviderVersion = d.ProviderVersion
	}

	return nil
}

// EditAccount stores the edited fields of an account. Changed credentials
// are checked for duplicates and probed again; the sync history is kept.
func (e *Engine) EditAccount(ctx context.Context, a *account.Account) error {
	if err := account.Normalize(a); err != nil {
		return err
	}

	e.mu.Lock()
	refresh, err := e.editAccount(ctx, a)
	e.mu.Unlock()

	if err != nil {
		return err
	}

	if refresh {
		return e.afterAccountChange(ctx, a)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.settleState(ctx); err != nil {
		return err
	}

	return e.reload(ctx)
}

// editAccount reports whether the account needs a refresh.
func (e *Engine) editAccount(ctx context.Context, a *account.Account) (bool, error) {
	old, err := e.account(ctx, a.ID)
	if err != nil {
		return false, err
	}

	credentials := old.Instance != a.Instance || old.APIToken != a.APIToken
	if credentials {
		exists, err := e.store.AccountExists(ctx, a.Instance, a.APIToken)
		if err != nil {
			return false, err
		}

		if exists {
			return false, fmt.Errorf("%w: %s", account.ErrDuplicate, a.Instance)
		}

		if err := e.fillDetails(ctx, a, a.Enabled); err != nil {
			return false, err
		}
	}

	a.LastSyncStatus = old.LastSyncStatus
	a.LastSyncTimestamp = old.LastSyncTimestamp

	if err := e.store.UpdateAccount(ctx, a); err != nil {
		return false, err
	}

	slog.Info("account updated", "id", a.ID)

	return a.Enabled && (credentials || !old.Enabled), nil
}

// RemoveAccount deletes an account with its bookmarks and the favicons no
// other account uses.
func (e *Engine) RemoveAccount(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.account(ctx, id)
	if err != nil {
		return err
	}

	if err := e.store.DeleteAccount(ctx, id); err != nil {
		return err
	}

	slog.Info("account removed", "id", id)
	e.notify(Notice{Level: LevelInfo, AccountID: id, Text: "removed account " + a.DisplayName})

	if e.session.State() != Refreshing {
		if err := e.settleState(ctx); err != nil {
			return err
		}
	}

	return e.reload(ctx)
}

// afterAccountChange refreshes an enabled remote account, or just settles
// the engine state.
func (e *Engine) afterAccountChange(ctx context.Context, a *account.Account) error {
	if a.Enabled && a.IsRemote() {
		err := e.RefreshOne(ctx, a.ID)
		if !errors.Is(err, ErrRefreshInProgress) {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State() != Refreshing {
		if err := e.settleState(ctx); err != nil {
			return err
		}
	}

	return e.reload(ctx)
}

// AddBookmark pushes a new bookmark through the account's provider and
// stores the result.
func (e *Engine) AddBookmark(ctx context.Context, accountID int64, b *bookmark.Bookmark) (*bookmark.Bookmark, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, err := e.account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	b = b.Clone()
	b.ID = 0
	b.AccountID = acc.ID
	b.IsOwner = true
	if err := bookmark.Validate(b); err != nil {
		return nil, err
	}

	out, err := e.populate(ctx, acc, b, true)
	if err != nil {
		return nil, err
	}

	e.notify(Notice{Level: LevelInfo, AccountID: acc.ID, Text: "added " + out.DisplayTitle()})

	return out, e.reloadBookmarks(ctx)
}

// EditBookmark pushes the edited fields of an owned bookmark and stores the
// result.
func (e *Engine) EditBookmark(ctx context.Context, b *bookmark.Bookmark) (*bookmark.Bookmark, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, acc, err := e.ownedBookmark(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	b = b.Clone()
	b.AccountID = old.AccountID
	b.ProviderInternalID = old.ProviderInternalID
	b.DateAdded = old.DateAdded
	b.IsOwner = true
	if err := bookmark.Validate(b); err != nil {
		return nil, err
	}

	out, err := e.populate(ctx, acc, b, false)
	if err != nil {
		return nil, err
	}

	e.notify(Notice{Level: LevelInfo, AccountID: acc.ID, Text: "updated " + out.DisplayTitle()})

	return out, e.reloadBookmarks(ctx)
}

// RemoveBookmark deletes an owned bookmark through its provider, then from
// the store.
func (e *Engine) RemoveBookmark(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, acc, err := e.ownedBookmark(ctx, id)
	if err != nil {
		return err
	}

	p, err := e.providers.For(acc)
	if err != nil {
		return err
	}

	res := p.RemoveBookmark(ctx, acc, b)
	if !res.Successful {
		e.notifyProviderFailure(acc, "removing "+b.URL, res.Err)
		return errors.Join(ErrProvider, res.Err)
	}

	if err := e.store.DeleteBookmark(ctx, b.ID); err != nil {
		return err
	}

	e.notify(Notice{Level: LevelInfo, AccountID: acc.ID, Text: "removed " + b.DisplayTitle()})

	return e.reloadBookmarks(ctx)
}

func (e *Engine) ownedBookmark(ctx context.Context, id int64) (*bookmark.Bookmark, *account.Account, error) {
	b, err := e.store.BookmarkByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %d", bookmark.ErrNotFound, id)
		}

		return nil, nil, err
	}

	if !b.IsOwner {
		return nil, nil, fmt.Errorf("%w: %d", bookmark.ErrNotOwner, id)
	}

	acc, err := e.account(ctx, b.AccountID)
	if err != nil {
		return nil, nil, err
	}

	return b, acc, nil
}

func (e *Engine) populate(
	ctx context.Context,
	acc *account.Account,
	b *bookmark.Bookmark,
	checkRemote bool,
) (*bookmark.Bookmark, error) {
	p, err := e.providers.For(acc)
	if err != nil {
		return nil, err
	}

	res := p.PopulateBookmark(ctx, acc, b, checkRemote)
	if !res.Successful {
		e.notifyProviderFailure(acc, "saving "+b.URL, res.Err)
		return nil, errors.Join(ErrProvider, res.Err)
	}

	return e.persist(ctx, res.Payload)
}

// persist writes a bookmark returned by a provider. It updates the stored
// row when the bookmark has a local id or its remote id is already stored
// for the account, and inserts it otherwise.
func (e *Engine) persist(ctx context.Context, b *bookmark.Bookmark) (*bookmark.Bookmark, error) {
	if b.ID == 0 && b.HasRemoteID() {
		existing, err := e.store.BookmarkByRemoteID(ctx, b.AccountID, b.RemoteID())
		switch {
		case err == nil:
			b.ID = existing.ID
			if b.DateAdded == "" {
				b.DateAdded = existing.DateAdded
			}
		case !errors.Is(err, db.ErrRecordNotFound):
			return nil, err
		}
	}

	if b.ID != 0 {
		if err := e.store.UpdateBookmark(ctx, b); err != nil {
			return nil, err
		}

		return b, nil
	}

	if _, err := e.store.InsertBookmark(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

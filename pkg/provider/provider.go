// Package provider adapts the backing source of an account, local or
// remote, to one contract consumed by the reconciliation engine.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
)

var ErrUnsupported = errors.New("unsupported provider")

// Result is the uniform outcome of a provider call. Failures are carried in
// Err, never raised.
type Result[T any] struct {
	Successful bool
	Err        error
	Payload    T
	Timestamp  int64 // epoch seconds, remote clock when known
}

// Message returns the human-readable error, or an empty string.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}

	return r.Err.Error()
}

func success[T any](payload T, at time.Time) Result[T] {
	return Result[T]{Successful: true, Payload: payload, Timestamp: at.Unix()}
}

func failure[T any](err error, at time.Time) Result[T] {
	return Result[T]{Err: err, Timestamp: at.Unix()}
}

// Provider is implemented by every backing source.
type Provider interface {
	// FetchBookmarks returns the full set of bookmarks for the account.
	FetchBookmarks(ctx context.Context, acc *account.Account) Result[[]*bookmark.Bookmark]
	// PopulateBookmark creates or updates b. With checkRemote set, an
	// existing remote bookmark for the same URL is updated instead of
	// created.
	PopulateBookmark(ctx context.Context, acc *account.Account, b *bookmark.Bookmark, checkRemote bool) Result[*bookmark.Bookmark]
	RemoveBookmark(ctx context.Context, acc *account.Account, b *bookmark.Bookmark) Result[struct{}]
	// FetchAccountDetails returns a copy of acc with the capability flags
	// reported by the source, or a nil payload when there is nothing to
	// probe.
	FetchAccountDetails(ctx context.Context, acc *account.Account) Result[*account.Account]
	Version(ctx context.Context, acc *account.Account) Result[string]
}

// Registry dispatches on the account's provider field.
type Registry map[account.Provider]Provider

// For returns the provider serving acc.
func (r Registry) For(acc *account.Account) (Provider, error) {
	if acc == nil {
		return nil, fmt.Errorf("%w: no account", ErrUnsupported)
	}

	p, ok := r[acc.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, acc.Provider)
	}

	return p, nil
}

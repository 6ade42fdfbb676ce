// Package favicon caches favicon blobs keyed by URL and decides when they
// must be fetched again.
package favicon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers = 4
	DefaultRate    = 8 // fetches per second
)

// Store persists cache entries.
type Store interface {
	FindFavicon(ctx context.Context, url string) (*Entry, bool, error)
	UpsertFavicon(ctx context.Context, e *Entry) error
}

type Option func(*Cache)

// WithWorkers bounds the number of concurrent fetches.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRate limits fetches to perSecond, with a burst of the same size.
func WithRate(perSecond int) Option {
	return func(c *Cache) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

// WithClock replaces the wall clock used for staleness and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache refreshes favicon entries in the background.
type Cache struct {
	store   Store
	fetcher Fetcher
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	group   singleflight.Group
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewCache returns a cache writing to store and fetching with f.
func NewCache(store Store, f Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		fetcher: f,
		sem:     semaphore.NewWeighted(DefaultWorkers),
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), DefaultRate),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// EnsureFresh schedules a background fetch of u when its entry is missing
// or stale, and reports whether it did. It never waits for the fetch.
func (c *Cache) EnsureFresh(ctx context.Context, u string) (bool, error) {
	if u == "" {
		return false, nil
	}

	e, found, err := c.store.FindFavicon(ctx, u)
	if err != nil {
		return false, err
	}

	if found && !NeedsRefresh(e, c.now()) {
		return false, nil
	}

	bg := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _, _ = c.group.Do(u, func() (any, error) {
			c.refresh(bg, u)
			return nil, nil
		})
	}()

	return true, nil
}

// Schedule calls EnsureFresh for each URL and returns how many fetches were
// scheduled. Lookup errors are logged and skipped.
func (c *Cache) Schedule(ctx context.Context, urls ...string) int {
	seen := make(map[string]struct{}, len(urls))
	n := 0

	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}

		ok, err := c.EnsureFresh(ctx, u)
		if err != nil {
			slog.Warn("favicon lookup", "url", u, "error", err)
			continue
		}

		if ok {
			n++
		}
	}

	return n
}

// Wait blocks until every scheduled fetch has been written back.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// refresh fetches u and always writes the outcome back; a failure is
// stored as empty data so the retry window applies.
func (c *Cache) refresh(ctx context.Context, u string) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("favicon worker", "url", u, "error", err)
		return
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		slog.Warn("favicon rate limit", "url", u, "error", err)
		return
	}

	data, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		slog.Warn("fetching favicon", "url", u, "error", err)
		data = []byte{}
	}

	e := &Entry{URL: u, Data: data, LastSyncTimestamp: c.now().Unix()}
	if err := c.store.UpsertFavicon(ctx, e); err != nil {
		slog.Error("storing favicon", "url", u, "error", err)
		return
	}

	slog.Debug("favicon stored", "url", u, "bytes", len(data))
}

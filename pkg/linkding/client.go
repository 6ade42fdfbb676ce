// Package linkding is a client for the linkding bookmark REST API.
package linkding

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxCreateRetries is how many times a create is retried on 503.
	MaxCreateRetries = 3
	// RetryBaseDelay is the wait before the first retry; it doubles after.
	RetryBaseDelay = 1000 * time.Millisecond

	pageLimit    = 100
	maxBodyBytes = 10 << 20
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) Option {
	return func(cl *Client) {
		cl.sleep = fn
	}
}

// WithClock replaces the clock used when a response has no Date header.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// Client talks to one linkding instance with one token.
type Client struct {
	base  string
	token string
	http  *http.Client
	sleep SleepFunc
	now   func() time.Time
}

// New returns a client for instance. When insecure is set, TLS certificates
// are not verified.
func New(instance, token string, insecure bool, opts ...Option) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec //per-account opt-in
	}

	c := &Client{
		base:  strings.TrimRight(instance, "/") + "/api",
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second, Transport: tr},
		sleep: sleepCtx,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Bookmarks lists the active bookmarks owned by the token's user.
func (c *Client) Bookmarks(ctx context.Context) (*Response[[]Bookmark], error) {
	return c.listAll(ctx, "/bookmarks/")
}

// Archived lists the archived bookmarks owned by the token's user.
func (c *Client) Archived(ctx context.Context) (*Response[[]Bookmark], error) {
	return c.listAll(ctx, "/bookmarks/archived/")
}

// Shared lists bookmarks other users share.
func (c *Client) Shared(ctx context.Context) (*Response[[]Bookmark], error) {
	return c.listAll(ctx, "/bookmarks/shared/")
}

// Check reports whether u is already bookmarked on the instance.
func (c *Client) Check(ctx context.Context, u string, disableScraping bool) (*Response[*CheckResult], error) {
	q := url.Values{}
	q.Set("url", u)
	if disableScraping {
		q.Set("disable_scraping", "true")
	}

	var out CheckResult
	date, err := c.doJSON(ctx, http.MethodGet, c.base+"/bookmarks/check/?"+q.Encode(), nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}

	return &Response[*CheckResult]{Data: &out, Date: date}, nil
}

// Create adds a bookmark. A 503 is retried up to MaxCreateRetries times,
// waiting RetryBaseDelay * 2^(n-1) before retry n; any other failure is
// returned at once.
func (c *Client) Create(ctx context.Context, w *BookmarkWrite) (*Response[*Bookmark], error) {
	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding bookmark: %w", err)
	}

	for retry := 0; ; retry++ {
		if retry > 0 {
			d := RetryBaseDelay * time.Duration(1<<(retry-1))
			slog.Warn("create bookmark: service unavailable, retrying", "url", w.URL, "retry", retry, "delay", d)

			if err := c.sleep(ctx, d); err != nil {
				return nil, &NetworkError{Op: "create bookmark", Err: err}
			}
		}

		var out Bookmark
		date, err := c.doJSON(ctx, http.MethodPost, c.base+"/bookmarks/", body, &out, http.StatusCreated, http.StatusOK)
		if err == nil {
			return &Response[*Bookmark]{Data: &out, Date: date}, nil
		}

		if StatusCode(err) != http.StatusServiceUnavailable || retry == MaxCreateRetries {
			return nil, err
		}
	}
}

// Update patches the bookmark with the given remote id.
func (c *Client) Update(ctx context.Context, id int64, w *BookmarkWrite) (*Response[*Bookmark], error) {
	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding bookmark: %w", err)
	}

	var out Bookmark
	u := c.base + "/bookmarks/" + strconv.FormatInt(id, 10) + "/"
	date, err := c.doJSON(ctx, http.MethodPatch, u, body, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}

	return &Response[*Bookmark]{Data: &out, Date: date}, nil
}

// Delete removes the bookmark with the given remote id. Only 204 counts as
// success.
func (c *Client) Delete(ctx context.Context, id int64) (time.Time, error) {
	u := c.base + "/bookmarks/" + strconv.FormatInt(id, 10) + "/"

	res, _, err := c.do(ctx, http.MethodDelete, u, nil, http.StatusNoContent)
	if err != nil {
		return time.Time{}, err
	}

	return c.responseDate(res.Header), nil
}

// Profile fetches the user profile used to probe credentials and
// capabilities.
func (c *Client) Profile(ctx context.Context) (*Response[*Profile], error) {
	var out Profile
	date, err := c.doJSON(ctx, http.MethodGet, c.base+"/user/profile/", nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}

	return &Response[*Profile]{Data: &out, Date: date}, nil
}

// listAll follows next links until the listing is exhausted. The date of the
// first page is reported.
func (c *Client) listAll(ctx context.Context, path string) (*Response[[]Bookmark], error) {
	next := c.base + path + "?limit=" + strconv.Itoa(pageLimit)
	seen := make(map[string]struct{})
	out := &Response[[]Bookmark]{Data: []Bookmark{}}

	for next != "" {
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("%w: %q", ErrPageLoop, next)
		}
		seen[next] = struct{}{}

		var page BookmarkList
		date, err := c.doJSON(ctx, http.MethodGet, next, nil, &page, http.StatusOK)
		if err != nil {
			return nil, err
		}

		if out.Date.IsZero() {
			out.Date = date
		}

		out.Data = append(out.Data, page.Results...)

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	slog.Debug("listed bookmarks", "path", path, "count", len(out.Data))

	return out, nil
}

func (c *Client) doJSON(
	ctx context.Context,
	method, u string,
	body []byte,
	out any,
	want ...int,
) (time.Time, error) {
	res, b, err := c.do(ctx, method, u, body, want...)
	if err != nil {
		return time.Time{}, err
	}

	if err := json.Unmarshal(b, out); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %s: %w", ErrDecode, method, u, err)
	}

	return c.responseDate(res.Header), nil
}

// do sends one request and reads the body. A status outside want becomes a
// StatusError.
func (c *Client) do(
	ctx context.Context,
	method, u string,
	body []byte,
	want ...int,
) (*http.Response, []byte, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()

	res, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &NetworkError{Op: method + " " + redact(u), Err: err}
	}

	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("error closing response body", "url", redact(u), "error", err)
		}
	}()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, &NetworkError{Op: "reading " + redact(u), Err: err}
	}

	slog.Debug("linkding response", "method", method, "url", redact(u), "status", res.StatusCode, "duration", time.Since(start))

	for _, code := range want {
		if res.StatusCode == code {
			return res, b, nil
		}
	}

	return res, b, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(b))}
}

// responseDate returns the server clock from the Date header, falling back
// to the local clock.
func (c *Client) responseDate(h http.Header) time.Time {
	if v := h.Get("Date"); v != "" {
		if t, err := mail.ParseDate(v); err == nil {
			return t.UTC()
		}
	}

	return c.now().UTC()
}

// redact drops the query string, which may carry bookmarked URLs.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}

	return u
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package scraper reads the title and description of a web page.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrStatus            = errors.New("unexpected status")
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 10 << 20
)

var descSelectors = []string{
	"meta[name='description']",
	"meta[name='Description']",
	"meta[property='description']",
	"meta[property='Description']",
	"meta[property='og:description']",
	"meta[property='og:Description']",
	"meta[name='og:description']",
	"meta[name='og:Description']",
}

type OptFn func(*Options)

type Options struct {
	client *http.Client
}

func WithClient(c *http.Client) OptFn {
	return func(o *Options) {
		o.client = c
	}
}

func WithTimeout(d time.Duration) OptFn {
	return func(o *Options) {
		o.client.Timeout = d
	}
}

// Scraper fetches pages and extracts their metadata.
type Scraper struct {
	Options
}

func defaults() *Options {
	return &Options{
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// New creates a new Scraper.
func New(opts ...OptFn) *Scraper {
	o := defaults()
	for _, opt := range opts {
		opt(o)
	}

	return &Scraper{Options: *o}
}

// Metadata returns the page title and description of rawURL. Missing tags
// yield empty strings.
func (s *Scraper) Metadata(ctx context.Context, rawURL string) (title, desc string, err error) {
	doc, err := s.fetch(ctx, rawURL)
	if err != nil {
		return "", "", err
	}

	return Title(doc), Desc(doc), nil
}

// Title extracts the page title.
func Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Desc extracts the first non-empty description meta tag.
func Desc(doc *goquery.Document) string {
	for _, selector := range descSelectors {
		if d := doc.Find(selector).AttrOr("content", ""); d != "" {
			return strings.TrimSpace(d)
		}
	}

	return ""
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u := normalizeURL(rawURL)
	if !isSupportedScheme(u) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	setHeaders(req)

	start := time.Now()

	res, err := s.client.Do(req)
	if err != nil {
		slog.Warn("request failed", "url", u, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}

	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("error closing response body", "url", u, "error", err)
		}
	}()

	slog.Debug("received response", "url", u, "status", res.StatusCode, "duration", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d %s", ErrStatus, res.StatusCode, u)
	}

	if ct := res.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "html") {
		slog.Warn("unexpected content type", "url", u, "content_type", ct)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	return doc, nil
}

func setHeaders(r *http.Request) {
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0")
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

func normalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return "http://" + raw
	}

	return raw
}

func isSupportedScheme(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)

	return scheme == "http" || scheme == "https"
}

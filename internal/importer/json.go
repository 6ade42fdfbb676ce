// Package importer reads bookmark batches for bulk import.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
)

var (
	ErrEmpty   = errors.New("no bookmarks found")
	ErrDecode  = errors.New("decoding bookmarks")
	ErrNoFiles = errors.New("no json files found")
)

const jsonExt = ".json"

// Record is one bookmark as written in an import file.
type Record struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	TagNames    []string `json:"tag_names"`
	IsArchived  bool     `json:"is_archived"`
	Unread      bool     `json:"unread"`
	Shared      bool     `json:"shared"`
}

func (r *Record) bookmark() *bookmark.Bookmark {
	b := bookmark.New(0, r.URL, strings.TrimSpace(r.Title), r.TagNames...)
	b.Description = r.Description
	b.Notes = r.Notes
	b.IsArchived = r.IsArchived
	b.Unread = r.Unread
	b.Shared = r.Shared

	return b
}

// Read decodes a JSON array of records, or a single record object.
func Read(r io.Reader) ([]*bookmark.Bookmark, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	var records []Record
	if data[0] == '[' {
		err = json.Unmarshal(data, &records)
	} else {
		records = make([]Record, 1)
		err = json.Unmarshal(data, &records[0])
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	bs := make([]*bookmark.Bookmark, 0, len(records))
	for i := range records {
		bs = append(bs, records[i].bookmark())
	}

	return bs, nil
}

// ReadFile decodes the file at p.
func ReadFile(p string) ([]*bookmark.Bookmark, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing import file", "path", p, "error", err)
		}
	}()

	bs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, p)
	}

	return bs, nil
}

// ReadDir decodes every .json file under root concurrently. Results keep the
// lexical order of the file paths.
func ReadDir(ctx context.Context, root string) ([]*bookmark.Bookmark, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == jsonExt {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, root)
	}

	results := make([][]*bookmark.Bookmark, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU() * 2)

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bs, err := ReadFile(p)
			if err != nil {
				return err
			}
			results[i] = bs

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*bookmark.Bookmark
	for _, bs := range results {
		out = append(out, bs...)
	}

	return out, nil
}

// Load reads p as a directory or a single file and drops repeated URLs,
// keeping the first occurrence.
func Load(ctx context.Context, p string) ([]*bookmark.Bookmark, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	var bs []*bookmark.Bookmark
	if fi.IsDir() {
		bs, err = ReadDir(ctx, p)
	} else {
		bs, err = ReadFile(p)
	}

	if err != nil {
		return nil, err
	}

	bs = Deduplicate(bs)
	if len(bs) == 0 {
		return nil, ErrEmpty
	}

	slog.Info("loaded bookmarks for import", "path", p, "count", len(bs))

	return bs, nil
}

// Deduplicate drops bookmarks whose URL appeared earlier in bs.
func Deduplicate(bs []*bookmark.Bookmark) []*bookmark.Bookmark {
	seen := make(map[string]struct{}, len(bs))
	out := make([]*bookmark.Bookmark, 0, len(bs))

	for _, b := range bs {
		if _, ok := seen[b.URL]; ok {
			slog.Debug("skipping duplicate url", "url", b.URL)
			continue
		}
		seen[b.URL] = struct{}{}
		out = append(out, b)
	}

	return out
}

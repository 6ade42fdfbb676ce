//nolint:wsl //test
package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func TestRead(t *testing.T) {
	t.Parallel()

	t.Run("array", func(t *testing.T) {
		t.Parallel()
		bs, err := Read(strings.NewReader(`[
			{"url": "https://a.example", "title": " A ", "tag_names": ["go", "cli"], "unread": true},
			{"url": "https://b.example", "notes": "n"}
		]`))
		require.NoError(t, err)
		require.Len(t, bs, 2)
		assert.Equal(t, "A", bs[0].Title)
		assert.Equal(t, bookmark.Tags{"go", "cli"}, bs[0].TagNames)
		assert.True(t, bs[0].Unread)
		assert.True(t, bs[0].IsOwner)
		assert.Equal(t, "n", bs[1].Notes)
		assert.Empty(t, bs[1].TagNames)
	})

	t.Run("single object", func(t *testing.T) {
		t.Parallel()
		bs, err := Read(strings.NewReader(`{"url": "https://a.example"}`))
		require.NoError(t, err)
		require.Len(t, bs, 1)
		assert.Equal(t, "https://a.example", bs[0].URL)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader("  \n"))
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader("[{"))
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestLoadDirectoryKeepsPathOrder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "2.json"), `[{"url": "https://c.example"}, {"url": "https://a.example"}]`)
	writeFile(t, filepath.Join(root, "a", "1.json"), `[{"url": "https://a.example"}, {"url": "https://b.example"}]`)
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

	bs, err := Load(t.Context(), root)
	require.NoError(t, err)

	urls := make([]string, 0, len(bs))
	for _, b := range bs {
		urls = append(urls, b.URL)
	}
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(t.Context(), t.TempDir())
	assert.ErrorIs(t, err, ErrNoFiles)

	p := filepath.Join(t.TempDir(), "empty.json")
	writeFile(t, p, "[]")
	_, err = Load(t.Context(), p)
	assert.ErrorIs(t, err, ErrEmpty)

	bad := filepath.Join(t.TempDir(), "d")
	writeFile(t, filepath.Join(bad, "x.json"), "{nope")
	_, err = Load(t.Context(), bad)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Load(t.Context(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

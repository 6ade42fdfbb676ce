package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInstance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "trailing slash", in: "https://Links.Example.com/", want: "https://links.example.com"},
		{name: "keeps port and path", in: "http://host:9090/linkding/", want: "http://host:9090/linkding"},
		{name: "drops query", in: "https://example.com/?x=1#frag", want: "https://example.com"},
		{name: "idna", in: "https://bücher.example", want: "https://xn--bcher-kva.example"},
		{name: "no scheme", in: "example.com", wantErr: true},
		{name: "ftp", in: "ftp://example.com", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeInstance(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInstance)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("remote", func(t *testing.T) {
		t.Parallel()
		a := NewRemote("  work ", "https://example.com/", " tok ")
		require.NoError(t, Normalize(a))
		assert.Equal(t, "work", a.DisplayName)
		assert.Equal(t, "https://example.com", a.Instance)
		assert.Equal(t, "tok", a.APIToken)
	})

	t.Run("local ignores instance", func(t *testing.T) {
		t.Parallel()
		a := NewLocal("mine")
		a.Instance = "whatever"
		require.NoError(t, Normalize(a))
		assert.Equal(t, LocalInstance, a.Instance)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, Normalize(NewRemote("", "https://x.com", "t")), ErrNameEmpty)
		assert.ErrorIs(t, Normalize(NewRemote("a", "https://x.com", "")), ErrTokenEmpty)
		assert.ErrorIs(t, Normalize(&Account{DisplayName: "a", Provider: "pinboard"}), ErrUnknownProvider)
		assert.ErrorIs(t, Normalize(nil), ErrValidation)
	})
}

func TestSupportsSharedListing(t *testing.T) {
	t.Parallel()
	a := NewRemote("a", "https://x.com", "t")
	assert.True(t, a.SupportsSharedListing())
	a.ProviderVersion = "1.18.2"
	assert.False(t, a.SupportsSharedListing())
	a.ProviderVersion = "v1.31.0"
	assert.True(t, a.SupportsSharedListing())
}

func TestNormalizeVersion(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.31.0", NormalizeVersion("v1.31"))
	assert.Equal(t, "dev", NormalizeVersion("dev"))
}

//nolint:wsl //test
package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
)

func TestParseID(t *testing.T) {
	t.Parallel()
	id, err := parseID("42")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, s := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(s)
		assert.ErrorIs(t, err, ErrInvalidID, s)
	}
}

func TestCommandTree(t *testing.T) {
	t.Parallel()
	paths := []string{
		"init",
		"config init",
		"config show",
		"version",
		"account add",
		"account list",
		"account edit",
		"account remove",
		"refresh",
		"bookmarks",
		"bookmark add",
		"bookmark edit",
		"bookmark remove",
		"bookmark open",
		"bookmark copy",
		"import",
		"favicons purge",
		"database vacuum",
		"database check",
	}

	for _, p := range paths {
		c, _, err := Root.Find(strings.Fields(p))
		require.NoError(t, err, p)
		assert.Equal(t, p, strings.TrimPrefix(c.CommandPath(), Root.Name()+" "))
	}
}

func TestReadLine(t *testing.T) {
	t.Parallel()
	s, err := readLine(strings.NewReader("  secret-token \n"))
	require.NoError(t, err)
	assert.Equal(t, "secret-token", s)

	s, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", s)
}

func TestInsecureHosts(t *testing.T) {
	t.Parallel()
	selfSigned := account.NewRemote("home", "https://LD.home.lan:8443", "tok")
	selfSigned.TrustInvalidCerts = true
	verified := account.NewRemote("work", "https://ld.example.com", "tok")
	local := account.NewLocal("local")
	local.TrustInvalidCerts = true

	got := insecureHosts([]*account.Account{selfSigned, verified, local})
	assert.Equal(t, []string{"LD.home.lan"}, got)
	assert.Empty(t, insecureHosts(nil))
}

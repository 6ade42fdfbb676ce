// Package account contains the account record and its provider variant.
package account

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/net/idna"
)

var (
	// ErrValidation is wrapped by every input validation failure, so callers
	// can reject before any store or network work happens.
	ErrValidation      = errors.New("validation failed")
	ErrNameEmpty       = fmt.Errorf("%w: display name cannot be empty", ErrValidation)
	ErrInvalidInstance = fmt.Errorf("%w: invalid instance", ErrValidation)
	ErrTokenEmpty      = fmt.Errorf("%w: api token cannot be empty", ErrValidation)
	ErrDuplicate       = fmt.Errorf("%w: account with the same instance and token already exists", ErrValidation)
	ErrUnknownProvider = fmt.Errorf("%w: unknown provider", ErrValidation)
)

// Provider is the tagged variant selecting the backing source of an account.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderLinkding Provider = "linkding"
)

// LocalInstance is the instance marker stored for local accounts.
const LocalInstance = "local://"

// minRemoteVersion is the oldest remote version known to expose the shared
// bookmarks listing.
var minRemoteVersion = semver.MustParse("1.19.0")

// ParseProvider parses a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderLocal, ProviderLinkding:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// IsRemote reports whether the provider talks to a remote instance.
func (p Provider) IsRemote() bool {
	return p == ProviderLinkding
}

// Account represents a configured source of bookmarks.
type Account struct {
	ID                  int64    `db:"id"                    json:"id"`
	DisplayName         string   `db:"display_name"          json:"display_name"`
	Instance            string   `db:"instance"              json:"instance"`
	APIToken            string   `db:"api_token"             json:"-"`
	Provider            Provider `db:"provider"              json:"provider"`
	ProviderVersion     string   `db:"provider_version"      json:"provider_version"`
	Enabled             bool     `db:"enabled"               json:"enabled"`
	TrustInvalidCerts   bool     `db:"trust_invalid_certs"   json:"trust_invalid_certs"`
	EnableSharing       bool     `db:"enable_sharing"        json:"enable_sharing"`
	EnablePublicSharing bool     `db:"enable_public_sharing" json:"enable_public_sharing"`
	LastSyncStatus      bool     `db:"last_sync_status"      json:"last_sync_status"`
	LastSyncTimestamp   int64    `db:"last_sync_timestamp"   json:"last_sync_timestamp"`
}

// NewRemote creates an enabled remote account.
func NewRemote(name, instance, token string) *Account {
	return &Account{
		DisplayName: name,
		Instance:    instance,
		APIToken:    token,
		Provider:    ProviderLinkding,
		Enabled:     true,
	}
}

// NewLocal creates an enabled local account.
func NewLocal(name string) *Account {
	return &Account{
		DisplayName: name,
		Instance:    LocalInstance,
		Provider:    ProviderLocal,
		Enabled:     true,
	}
}

// IsPersisted reports whether the account has been stored.
func (a *Account) IsPersisted() bool {
	return a.ID != 0
}

// IsRemote reports whether the account is backed by a remote instance.
func (a *Account) IsRemote() bool {
	return a.Provider.IsRemote()
}

// SupportsSharedListing reports whether the remote version is recent enough
// to list shared bookmarks. Unknown versions are assumed to support it.
func (a *Account) SupportsSharedListing() bool {
	v, err := semver.NewVersion(a.ProviderVersion)
	if err != nil {
		return true
	}

	return !v.LessThan(minRemoteVersion)
}

func (a *Account) String() string {
	return fmt.Sprintf("%s (%s)", a.DisplayName, a.Instance)
}

// Normalize validates the account fields and rewrites the instance into its
// canonical form.
func Normalize(a *Account) error {
	if a == nil {
		return ErrValidation
	}

	a.DisplayName = strings.TrimSpace(a.DisplayName)
	if a.DisplayName == "" {
		return ErrNameEmpty
	}

	p, err := ParseProvider(string(a.Provider))
	if err != nil {
		return err
	}
	a.Provider = p

	if !a.IsRemote() {
		a.Instance = LocalInstance
		return nil
	}

	a.APIToken = strings.TrimSpace(a.APIToken)
	if a.APIToken == "" {
		return ErrTokenEmpty
	}

	inst, err := NormalizeInstance(a.Instance)
	if err != nil {
		return err
	}
	a.Instance = inst

	return nil
}

// NormalizeInstance returns the canonical base URL for a remote instance:
// http(s) scheme, ASCII lowercase host, no trailing slash.
func NormalizeInstance(s string) (string, error) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInstance, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInstance, u.Scheme)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidInstance, s)
	}

	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInstance, err)
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}

	u.Scheme = scheme
	u.Host = host
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String(), nil
}

// NormalizeVersion returns a canonical semantic version string, or the input
// unchanged when it does not parse.
func NormalizeVersion(s string) string {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return s
	}

	return v.String()
}

// Package bookmark contains the bookmark record.
package bookmark

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalid     = errors.New("bookmark invalid")
	ErrURLEmpty    = fmt.Errorf("%w: URL cannot be empty", ErrInvalid)
	ErrURLInvalid  = fmt.Errorf("%w: URL is not absolute", ErrInvalid)
	ErrNoAccount   = fmt.Errorf("%w: no owning account", ErrInvalid)
	ErrNotFound    = errors.New("no bookmark found")
	ErrNotOwner    = errors.New("bookmark is not owned by this account")
	ErrUnknownSort = errors.New("unknown sort order")
)

// TimestampLayout is the ISO-8601 layout used for date_added and
// date_modified, microsecond precision, UTC.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Tags is an ordered list of tag names, persisted as a space-joined string.
type Tags []string

// ParseTags splits a space or comma separated string into tags, dropping
// empty entries and keeping the original order.
func ParseTags(s string) Tags {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(fields) == 0 {
		return Tags{}
	}

	return Tags(fields)
}

// String returns the space-joined representation.
func (t Tags) String() string {
	return strings.Join(t, " ")
}

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Tags{}
	case string:
		*t = ParseTags(v)
	case []byte:
		*t = ParseTags(string(v))
	default:
		return fmt.Errorf("%w: cannot scan %T into tags", ErrInvalid, src)
	}

	return nil
}

// Bookmark represents a bookmark cached for one account.
type Bookmark struct {
	ID                    int64  `db:"id"                       json:"id"`
	AccountID             int64  `db:"user_account_id"          json:"user_account_id"`
	ProviderInternalID    *int64 `db:"provider_internal_id"     json:"provider_internal_id,omitempty"`
	URL                   string `db:"url"                      json:"url"`
	Title                 string `db:"title"                    json:"title"`
	Description           string `db:"description"              json:"description"`
	Notes                 string `db:"notes"                    json:"notes"`
	WebsiteTitle          string `db:"website_title"            json:"website_title"`
	WebsiteDescription    string `db:"website_description"      json:"website_description"`
	WebArchiveSnapshotURL string `db:"web_archive_snapshot_url" json:"web_archive_snapshot_url"`
	FaviconURL            string `db:"favicon_url"              json:"favicon_url"`
	PreviewImageURL       string `db:"preview_image_url"        json:"preview_image_url"`
	TagNames              Tags   `db:"tag_names"                json:"tag_names"`
	IsArchived            bool   `db:"is_archived"              json:"is_archived"`
	Unread                bool   `db:"unread"                   json:"unread"`
	Shared                bool   `db:"shared"                   json:"shared"`
	IsOwner               bool   `db:"is_owner"                 json:"is_owner"`
	DateAdded             string `db:"date_added"               json:"date_added"`
	DateModified          string `db:"date_modified"            json:"date_modified"`

	// FaviconData is filled by list queries from the favicon cache; it is
	// never written through the bookmarks table.
	FaviconData []byte `db:"favicon_data" json:"-"`
}

// New creates a new owned bookmark for the given account.
func New(accountID int64, bURL, title string, tags ...string) *Bookmark {
	return &Bookmark{
		AccountID: accountID,
		URL:       strings.TrimSpace(bURL),
		Title:     title,
		TagNames:  Tags(slices.Clone(tags)),
		IsOwner:   true,
	}
}

// HasRemoteID reports whether the bookmark exists on the provider side.
func (b *Bookmark) HasRemoteID() bool {
	return b.ProviderInternalID != nil
}

// RemoteID returns the provider-side id, or zero.
func (b *Bookmark) RemoteID() int64 {
	if b.ProviderInternalID == nil {
		return 0
	}

	return *b.ProviderInternalID
}

// SetRemoteID sets the provider-side id.
func (b *Bookmark) SetRemoteID(id int64) {
	b.ProviderInternalID = &id
}

// DisplayTitle returns the user title, falling back to the website title and
// finally the URL.
func (b *Bookmark) DisplayTitle() string {
	switch {
	case b.Title != "":
		return b.Title
	case b.WebsiteTitle != "":
		return b.WebsiteTitle
	default:
		return b.URL
	}
}

// Clone returns a deep copy of b.
func (b *Bookmark) Clone() *Bookmark {
	c := *b
	c.TagNames = slices.Clone(b.TagNames)
	c.FaviconData = slices.Clone(b.FaviconData)
	if b.ProviderInternalID != nil {
		id := *b.ProviderInternalID
		c.ProviderInternalID = &id
	}

	return &c
}

// Validate checks the fields required before a bookmark is sent to a
// provider or stored.
func Validate(b *Bookmark) error {
	if b == nil {
		return ErrInvalid
	}
	if strings.TrimSpace(b.URL) == "" {
		return ErrURLEmpty
	}

	u, err := url.Parse(b.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrURLInvalid, b.URL)
	}

	if b.AccountID == 0 {
		return ErrNoAccount
	}

	return nil
}

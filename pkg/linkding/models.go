package linkding

import "time"

// Bookmark is a bookmark as returned by the API.
type Bookmark struct {
	ID                    int64    `json:"id"`
	URL                   string   `json:"url"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	Notes                 string   `json:"notes"`
	WebArchiveSnapshotURL string   `json:"web_archive_snapshot_url"`
	FaviconURL            string   `json:"favicon_url"`
	PreviewImageURL       string   `json:"preview_image_url"`
	WebsiteTitle          string   `json:"website_title"`
	WebsiteDescription    string   `json:"website_description"`
	IsArchived            bool     `json:"is_archived"`
	Unread                bool     `json:"unread"`
	Shared                bool     `json:"shared"`
	TagNames              []string `json:"tag_names"`
	DateAdded             string   `json:"date_added"`
	DateModified          string   `json:"date_modified"`
}

// BookmarkWrite is the body of a create or update request. Every field is
// sent so an edit can clear a value.
type BookmarkWrite struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	IsArchived  bool     `json:"is_archived"`
	Unread      bool     `json:"unread"`
	Shared      bool     `json:"shared"`
	TagNames    []string `json:"tag_names"`
}

// BookmarkList is one page of a bookmark listing.
type BookmarkList struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Bookmark `json:"results"`
}

// Metadata is the scraped page metadata reported by the check endpoint.
type Metadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CheckResult reports whether a URL is already bookmarked.
type CheckResult struct {
	Bookmark *Bookmark `json:"bookmark"`
	Metadata Metadata  `json:"metadata"`
	AutoTags []string  `json:"auto_tags"`
}

// Profile holds the user preferences relevant to syncing.
type Profile struct {
	Theme               string `json:"theme"`
	EnableSharing       bool   `json:"enable_sharing"`
	EnablePublicSharing bool   `json:"enable_public_sharing"`
	EnableFavicons      bool   `json:"enable_favicons"`
	Version             string `json:"version"`
}

// Response carries a decoded payload and the server's clock.
type Response[T any] struct {
	Data T
	Date time.Time
}

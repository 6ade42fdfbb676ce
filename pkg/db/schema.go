package db

// tables.
const (
	tableAccounts  Table = "accounts"
	tableBookmarks Table = "bookmarks"
	tableFavicons  Table = "favicons"
)

// Migration is one ordered schema step. Version is stored in
// PRAGMA user_version once the step commits.
type Migration struct {
	Version int
	Name    string
	Stmts   []string
}

// Migrations lists every schema step in application order.
var Migrations = []Migration{
	{Version: 1, Name: "create accounts", Stmts: []string{tableAccountsSchema}},
	{Version: 2, Name: "create bookmarks", Stmts: []string{tableBookmarksSchema, tableBookmarksIndexAccount}},
	{Version: 3, Name: "create favicon cache", Stmts: []string{tableFaviconsSchema}},
	{Version: 4, Name: "accounts provider columns", Stmts: []string{
		`ALTER TABLE accounts ADD COLUMN provider TEXT NOT NULL DEFAULT 'linkding'`,
		`ALTER TABLE accounts ADD COLUMN provider_version TEXT NOT NULL DEFAULT ''`,
	}},
	{Version: 5, Name: "bookmarks remote id index", Stmts: []string{tableBookmarksIndexRemote}},
}

// accounts table.
const tableAccountsSchema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		display_name          TEXT    NOT NULL,
		instance              TEXT    NOT NULL,
		api_token             TEXT    NOT NULL DEFAULT '',
		enabled               BOOLEAN NOT NULL DEFAULT TRUE,
		trust_invalid_certs   BOOLEAN NOT NULL DEFAULT FALSE,
		enable_sharing        BOOLEAN NOT NULL DEFAULT FALSE,
		enable_public_sharing BOOLEAN NOT NULL DEFAULT FALSE,
		last_sync_status      BOOLEAN NOT NULL DEFAULT FALSE,
		last_sync_timestamp   INTEGER NOT NULL DEFAULT 0,
		UNIQUE (instance, api_token)
	);`

// bookmarks table. Rows reference accounts without ON DELETE CASCADE:
// account removal deletes its bookmarks explicitly.
const (
	tableBookmarksSchema = `
	CREATE TABLE IF NOT EXISTS bookmarks (
		id                       INTEGER PRIMARY KEY AUTOINCREMENT,
		user_account_id          INTEGER NOT NULL REFERENCES accounts(id),
		provider_internal_id     INTEGER,
		url                      TEXT    NOT NULL,
		title                    TEXT    NOT NULL DEFAULT '',
		description              TEXT    NOT NULL DEFAULT '',
		notes                    TEXT    NOT NULL DEFAULT '',
		website_title            TEXT    NOT NULL DEFAULT '',
		website_description      TEXT    NOT NULL DEFAULT '',
		web_archive_snapshot_url TEXT    NOT NULL DEFAULT '',
		favicon_url              TEXT    NOT NULL DEFAULT '',
		preview_image_url        TEXT    NOT NULL DEFAULT '',
		tag_names                TEXT    NOT NULL DEFAULT '',
		is_archived              BOOLEAN NOT NULL DEFAULT FALSE,
		unread                   BOOLEAN NOT NULL DEFAULT FALSE,
		shared                   BOOLEAN NOT NULL DEFAULT FALSE,
		is_owner                 BOOLEAN NOT NULL DEFAULT TRUE,
		date_added               TEXT    NOT NULL DEFAULT '',
		date_modified            TEXT    NOT NULL DEFAULT ''
	);`

	tableBookmarksIndexAccount = `
	CREATE INDEX IF NOT EXISTS idx_bookmarks_account_url
	ON bookmarks(user_account_id, url);`

	tableBookmarksIndexRemote = `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookmarks_account_remote
	ON bookmarks(user_account_id, provider_internal_id);`
)

// favicon cache table. An empty data blob records a failed fetch.
const tableFaviconsSchema = `
	CREATE TABLE IF NOT EXISTS favicons (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		favicon_url         TEXT    NOT NULL UNIQUE,
		data                BLOB,
		last_sync_timestamp INTEGER NOT NULL DEFAULT 0
	);`

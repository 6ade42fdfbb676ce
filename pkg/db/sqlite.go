// Package db provides the persistent store for accounts, bookmarks and the
// favicon cache.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	MaxOpenConns    = 10        // Maximum number of open connections
	MaxIdleConns    = 5         // Maximum number of idle connections
	MaxLifetimeConn = time.Hour // Maximum connection lifetime
)

type Table string

// SQLite is the SQLite backed store.
type SQLite struct {
	DB        *sqlx.DB `json:"-"`
	Cfg       *Cfg     `json:"db"`
	closeOnce sync.Once
}

// Name returns the name of the SQLite database.
func (r *SQLite) Name() string {
	return r.Cfg.Name
}

// Close closes the SQLite database connection and logs any errors encountered.
func (r *SQLite) Close() {
	s := r.Name()
	r.closeOnce.Do(func() {
		if err := r.DB.Close(); err != nil {
			slog.Error("closing database", "name", s, "error", err)
		} else {
			slog.Debug("database closed", "name", s)
		}
	})
}

// New returns a new store from an existing database path.
func New(p string) (*SQLite, error) {
	return newRepository(p, func(path string) error {
		slog.Debug("new repo: checking if database exists", "path", path)

		if !fileExists(path) {
			return fmt.Errorf("%w: %q", ErrDBNotFound, path)
		}

		return nil
	})
}

// Init creates a new database at the provided path.
func Init(p string) (*SQLite, error) {
	return newRepository(p, func(path string) error {
		slog.Debug("init repo: checking if database exists", "path", path)

		if fileExists(path) {
			return fmt.Errorf("%w: %q", ErrDBExists, path)
		}

		return os.MkdirAll(filepath.Dir(path), 0o755)
	})
}

// Open opens the database at p, creating it if missing, and applies pending
// migrations.
func Open(ctx context.Context, p string) (*SQLite, error) {
	c, err := NewSQLiteCfg(p)
	if err != nil {
		return nil, err
	}

	open := New
	if !c.Exists() {
		open = Init
	}

	r, err := open(p)
	if err != nil {
		return nil, err
	}

	if err := r.Migrate(ctx); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

// NewFromDB wraps an already opened database handle.
func NewFromDB(db *sqlx.DB, name string) *SQLite {
	return &SQLite{
		DB:  db,
		Cfg: &Cfg{Name: name},
	}
}

// newRepository returns a new store from the provided path.
func newRepository(p string, validate func(string) error) (*SQLite, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: %q", ErrDBNotFound, p)
	}

	c, err := NewSQLiteCfg(p)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	p = c.Fullpath()
	if err := validate(p); err != nil {
		return nil, err
	}

	db, err := OpenDatabase(p)
	if err != nil {
		slog.Error("NewRepo", "error", err, "path", p)
		return nil, err
	}

	return &SQLite{DB: db, Cfg: c}, nil
}

// buildSQLiteDSN constructs a SQLite Data Source Name from a file path and
// the pragmas applied to every connection.
func buildSQLiteDSN(path string, pragmas []string) string {
	if len(pragmas) == 0 {
		return path
	}

	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	return path + separator + q.Encode()
}

// isMemory reports whether path points to an in-memory database.
func isMemory(path string) bool {
	return strings.Contains(path, "mode=memory") || path == ":memory:"
}

// OpenDatabase opens a SQLite database at the specified path and verifies
// the connection, returning the database handle or an error.
func OpenDatabase(path string) (*sqlx.DB, error) {
	slog.Debug("opening database", "path", path)

	pragmas := []string{
		"foreign_keys(1)",     // enforce foreign key constraints
		"journal_mode(WAL)",   // enable multi-thread safe mode with wal
		"synchronous(NORMAL)", // balance performance and durability
		"busy_timeout(5000)",  // set a timeout for a busy database
	}
	memory := isMemory(path)
	if memory {
		pragmas = []string{"foreign_keys(1)", "busy_timeout(5000)"}
	}

	db, err := sqlx.Open("sqlite", buildSQLiteDSN(path, pragmas))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Connection pool tuning
	db.SetMaxOpenConns(MaxOpenConns)
	db.SetMaxIdleConns(MaxIdleConns)
	db.SetConnMaxLifetime(MaxLifetimeConn)
	if memory {
		// a shared in-memory database vanishes with its last connection
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: on ping context", err)
	}

	return db, nil
}

// WithTx executes a function within a transaction.
func (r *SQLite) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() // ensure rollback on panic

			panic(p) // re-throw the panic after rollback
		} else if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("rollback error", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return fmt.Errorf("fn transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

// Cfg represents the configuration for a SQLite database.
type Cfg struct {
	Name string `json:"name"` // Name of the SQLite database
	Path string `json:"path"` // Path to the SQLite database
}

// Fullpath returns the full path to the SQLite database.
func (c *Cfg) Fullpath() string {
	return filepath.Join(c.Path, c.Name)
}

// Exists returns true if the SQLite database exists.
func (c *Cfg) Exists() bool {
	return fileExists(c.Fullpath())
}

// NewSQLiteCfg returns the default settings for the database.
func NewSQLiteCfg(p string) (*Cfg, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %q: %w", p, err)
	}

	return &Cfg{
		Path: filepath.Dir(abs),
		Name: ensureDBSuffix(filepath.Base(abs)),
	}, nil
}

// fileExists checks if a file exists.
func fileExists(s string) bool {
	_, err := os.Stat(s)
	return !os.IsNotExist(err)
}

func ensureDBSuffix(s string) string {
	const suffix = ".db"
	if s == "" {
		return s
	}

	if filepath.Ext(s) != "" {
		return s
	}

	return s + suffix
}

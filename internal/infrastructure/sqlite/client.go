// Package sqlite provides the embedded catalog database used when no
// PostgreSQL server is configured.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	filename     TEXT    NOT NULL UNIQUE,
	title        TEXT    NOT NULL,
	overlay_text TEXT    NOT NULL DEFAULT '',
	thumbnail    TEXT    NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos (created_at DESC, id DESC);
`

// ClientConfig holds configuration for the SQLite client.
type ClientConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig(path string) ClientConfig {
	return ClientConfig{
		Path:        path,
		BusyTimeout: 5 * time.Second,
	}
}

// Client wraps a single-connection SQLite handle.
type Client struct {
	db *sql.DB
}

// NewClient opens (creating if needed) the database file and ensures the
// schema exists.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes catalog
	// transactions instead of surfacing SQLITE_BUSY to requests.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Client{db: db}, nil
}

func dsn(cfg ClientConfig) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	return cfg.Path + "?" + q.Encode()
}

// DB returns the underlying handle.
// Use this for creating repository instances.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping verifies the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database.
func (c *Client) Close() error {
	return c.db.Close()
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
)

// ErrNoSnapshot is returned by LoadHandles before the first SaveHandles.
var ErrNoSnapshot = errors.New("no directory snapshot stored")

// DB stores snapshots of the email -> Slack handle directory.
// Implementations exist for SQLite (default) and MySQL.
type DB interface {
	// SaveHandles replaces the stored snapshot with handles.
	SaveHandles(ctx context.Context, handles map[string]string) error

	// LoadHandles returns the stored snapshot and when it was saved.
	LoadHandles(ctx context.Context) (map[string]string, time.Time, error)

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error

	// Driver returns the backend name: "sqlite" or "mysql".
	Driver() string
}

// New returns a DB implementation matching cfg.Driver, or nil when the
// driver is "none". SQLite is the default when driver is empty.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql, none)", cfg.Driver)
	}
}

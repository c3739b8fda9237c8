package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
)

func newTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "directory.db")})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestSQLite(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestLoadHandlesBeforeSave(t *testing.T) {
	db := newTestSQLite(t)
	if _, _, err := db.LoadHandles(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("LoadHandles error = %v, want ErrNoSnapshot", err)
	}
}

func TestSaveAndLoadHandles(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	if err := db.SaveHandles(ctx, map[string]string{"a@x.io": "@U1", "b@x.io": "@U2", "": "@U0"}); err != nil {
		t.Fatalf("SaveHandles: %v", err)
	}
	if err := db.SaveHandles(ctx, map[string]string{"c@x.io": "@U3"}); err != nil {
		t.Fatalf("second SaveHandles: %v", err)
	}

	handles, at, err := db.LoadHandles(ctx)
	if err != nil {
		t.Fatalf("LoadHandles: %v", err)
	}
	if len(handles) != 1 || handles["c@x.io"] != "@U3" {
		t.Fatalf("snapshot not replaced: %v", handles)
	}
	if at.IsZero() {
		t.Fatal("expected a refresh time")
	}
}

func TestSaveHandlesKeepsOnlyLatestRefresh(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := db.SaveHandles(ctx, map[string]string{"a@x.io": "@U1"}); err != nil {
			t.Fatalf("SaveHandles #%d: %v", i, err)
		}
	}
	var n int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM directory_refreshes`).Scan(&n); err != nil {
		t.Fatalf("count refreshes: %v", err)
	}
	if n != 1 {
		t.Fatalf("directory_refreshes has %d rows, want 1", n)
	}
	if _, _, err := db.LoadHandles(ctx); err != nil {
		t.Fatalf("LoadHandles after pruning: %v", err)
	}
}

func TestPingOrCloseClosesOnFailure(t *testing.T) {
	raw, err := sql.Open("mysql", "u:p@tcp(127.0.0.1:1)/none?timeout=500ms")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := pingOrClose(context.Background(), raw, "mysql"); err == nil {
		t.Fatal("expected ping error for an unreachable server")
	}
	if err := raw.PingContext(context.Background()); err == nil || !strings.Contains(err.Error(), "database is closed") {
		t.Fatalf("db left open after failed ping: %v", err)
	}
}

func TestNewSQLiteFailsOnDirectoryPath(t *testing.T) {
	if _, err := NewSQLite(config.DatabaseConfig{Path: t.TempDir()}); err == nil {
		t.Fatal("expected error opening a directory as a database")
	}
}

func TestNewSelectsDriver(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "none"})
	if err != nil || db != nil {
		t.Fatalf("driver none: db=%v err=%v", db, err)
	}
	if _, err := New(config.DatabaseConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := New(config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected error for mysql without DSN")
	}
}

func TestMySQLAdapt(t *testing.T) {
	got := mysqlAdapt("id INTEGER PRIMARY KEY AUTOINCREMENT,")
	if !strings.Contains(got, "INT NOT NULL AUTO_INCREMENT PRIMARY KEY") {
		t.Fatalf("mysqlAdapt() = %q", got)
	}
}

package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// handleStore holds the snapshot queries shared by both backends. Both
// drivers accept '?' placeholders.
type handleStore struct {
	db *sql.DB
}

func (s handleStore) SaveHandles(ctx context.Context, handles map[string]string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM directory_entries`); err != nil {
		return fmt.Errorf("clearing directory entries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO directory_entries (email, handle, refreshed_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing directory insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for email, handle := range handles {
		if email == "" || handle == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, email, handle, now); err != nil {
			return fmt.Errorf("inserting directory entry %s: %w", email, err)
		}
		n++
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO directory_refreshes (entries, refreshed_at) VALUES (?, ?)`, n, now,
	)
	if err != nil {
		return fmt.Errorf("recording directory refresh: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading refresh id: %w", err)
	}
	// LoadHandles only reads the latest refresh.
	if _, err := tx.ExecContext(ctx, `DELETE FROM directory_refreshes WHERE id <> ?`, id); err != nil {
		return fmt.Errorf("pruning directory refreshes: %w", err)
	}
	return tx.Commit()
}

func (s handleStore) LoadHandles(ctx context.Context) (map[string]string, time.Time, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT refreshed_at FROM directory_refreshes ORDER BY id DESC LIMIT 1`,
	).Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading last refresh: %w", err)
	}
	at, err := time.Parse(time.RFC3339, savedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing refresh time %q: %w", savedAt, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT email, handle FROM directory_entries`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	handles := map[string]string{}
	for rows.Next() {
		var email, handle string
		if err := rows.Scan(&email, &handle); err != nil {
			return nil, time.Time{}, err
		}
		handles[email] = handle
	}
	return handles, at, rows.Err()
}

// pingOrClose checks the connection and closes db when it is unusable.
func pingOrClose(ctx context.Context, db *sql.DB, driver string) error {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging %s: %w", driver, err)
	}
	return nil
}

// applyMigrations runs every *.sql file from migrations/ in sorted order,
// tracking applied files in schema_migrations. adapt rewrites the SQLite
// dialect for other backends.
func applyMigrations(ctx context.Context, db *sql.DB, driver string, adapt func(string) string) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var count int
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		script := string(data)
		if adapt != nil {
			script = adapt(script)
		}
		for _, stmt := range strings.Split(script, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying migration %s statement: %w\nSQL: %s", name, err, stmt)
			}
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Info("Applied migration", "file", name, "driver", driver)
	}
	return nil
}

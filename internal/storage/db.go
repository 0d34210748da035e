package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite"
)

// recentlyOpenedKey is the ItemTable key holding the recent list.
const recentlyOpenedKey = "history.recentlyOpenedPathsList"

// openGlobalDB opens the editor's global state database read-only.
// The editor may hold the database open at the same time, so we never write
// and keep a short busy timeout.
func openGlobalDB(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open global storage: %w", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax; the file: URI form
	// lets SQLite honour mode=ro and handles spaces in "Code - OSS".
	dsn := url.URL{
		Scheme:   "file",
		Path:     path,
		RawQuery: "mode=ro&_pragma=busy_timeout(2000)&_pragma=query_only(1)",
	}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open global storage: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

func readGlobalDB(ctx context.Context, path string) ([]Entry, error) {
	db, err := openGlobalDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var value []byte
	row := db.QueryRowContext(ctx, `SELECT value FROM ItemTable WHERE key = ?`, recentlyOpenedKey)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The editor has not recorded anything yet.
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to query recently opened paths from %s: %w", path, err)
	}
	if len(value) == 0 {
		return []Entry{}, nil
	}

	return parseRecentList(value)
}

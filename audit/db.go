package audit

import (
	"database/sql"
	"fmt"
)

// Open opens the audit database with production-safe pragmas and creates
// the schema. The caller must import an SQLite driver registered under
// the name "sqlite" (modernc.org/sqlite).
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_log (
	scan_id     TEXT PRIMARY KEY,
	cause       TEXT NOT NULL,
	items       INTEGER NOT NULL,
	masked      INTEGER NOT NULL,
	already     INTEGER NOT NULL,
	no_title    INTEGER NOT NULL,
	no_match    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mask_events (
	event_id   TEXT PRIMARY KEY,
	scan_id    TEXT NOT NULL,
	category   TEXT NOT NULL,
	title      TEXT NOT NULL,
	card_md    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_log_created ON scan_log(created_at);
CREATE INDEX IF NOT EXISTS idx_mask_events_created ON mask_events(created_at);
CREATE INDEX IF NOT EXISTS idx_mask_events_scan ON mask_events(scan_id);
`

package store

import "database/sql"

// Schema is the complete survey-state schema. One database holds one
// survey's progress; a resumed run opens the same file and continues.
const Schema = `
-- Roster items and their scrape status
CREATE TABLE IF NOT EXISTS items (
    label       TEXT PRIMARY KEY,
    display     TEXT NOT NULL,
    seq         INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'pending',
    attempts    INTEGER NOT NULL DEFAULT 0,
    last_error  TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_status ON items(status, seq);

-- Extracted values, one row per item per source, overwritten on re-scrape
CREATE TABLE IF NOT EXISTS results (
    label        TEXT NOT NULL REFERENCES items(label) ON DELETE CASCADE,
    source       TEXT NOT NULL,
    date_text    TEXT NOT NULL DEFAULT '',
    price_low    REAL NOT NULL DEFAULT 0,
    price_high   REAL NOT NULL DEFAULT 0,
    price_ref    REAL NOT NULL DEFAULT 0,
    confidence   TEXT NOT NULL DEFAULT 'not_found',
    url          TEXT NOT NULL DEFAULT '',
    availability TEXT NOT NULL DEFAULT '',
    updated_at   INTEGER NOT NULL,
    PRIMARY KEY (label, source)
);

-- Run-scoped key/value metadata (run id, roster path, source kind, counters)
CREATE TABLE IF NOT EXISTS run_meta (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Append-only diagnostic event log
CREATE TABLE IF NOT EXISTS events (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id    TEXT NOT NULL DEFAULT '',
    level     TEXT NOT NULL,
    kind      TEXT NOT NULL,
    label     TEXT NOT NULL DEFAULT '',
    message   TEXT NOT NULL DEFAULT '',
    logged_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(logged_at DESC);
`

// Migration001SearchURL records the search URL each result came through.
// Safe to run on existing databases.
const Migration001SearchURL = `
ALTER TABLE results ADD COLUMN search_url TEXT NOT NULL DEFAULT '';
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return err
	}
	applyColumnMigration(db, "results", "search_url", Migration001SearchURL)
	return nil
}

// applyColumnMigration adds a column if it doesn't exist (idempotent).
func applyColumnMigration(db *sql.DB, table, column, ddl string) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil || count > 0 {
		return
	}
	db.Exec(ddl)
}

package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    legislature TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('running', 'published', 'failed')),
    row_count INTEGER DEFAULT 0,
    error TEXT,
    started_at TEXT DEFAULT (datetime('now')),
    finished_at TEXT
);

CREATE TABLE IF NOT EXISTS published_tables (
    legislature TEXT NOT NULL,
    phase TEXT NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('votes', 'approvals', 'correlations', 'dissent')),
    build_id TEXT NOT NULL REFERENCES builds(id),
    payload TEXT NOT NULL,
    published_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (legislature, phase, kind)
);

CREATE TABLE IF NOT EXISTS build_reports (
    legislature TEXT PRIMARY KEY,
    build_id TEXT NOT NULL REFERENCES builds(id),
    body_markdown TEXT NOT NULL,
    generated_at TEXT DEFAULT (datetime('now'))
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "build history index",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_builds_legislature ON builds(legislature, started_at);
CREATE INDEX IF NOT EXISTS idx_published_build ON published_tables(build_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

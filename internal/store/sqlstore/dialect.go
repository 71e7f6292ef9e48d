// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package sqlstore

// dialect holds the statements that differ between sqlite and mysql. Every
// other query uses "?" placeholders and is shared.
type dialect struct {
	driver           string
	schema           []string
	upsertActivation string
}

var sqliteDialect = dialect{
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS plug_runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	identifier  TEXT NOT NULL,
	owner       TEXT NOT NULL DEFAULT '',
	run         INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_plug_runs_identifier ON plug_runs(identifier)`,
		`CREATE INDEX IF NOT EXISTS idx_plug_runs_recorded_at ON plug_runs(recorded_at)`,
		`CREATE TABLE IF NOT EXISTS activations (
	kind       TEXT NOT NULL,
	identifier TEXT NOT NULL,
	disabled   INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (kind, identifier)
)`,
	},
	upsertActivation: `INSERT INTO activations (kind, identifier, disabled, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(kind, identifier) DO UPDATE SET disabled = excluded.disabled, updated_at = excluded.updated_at`,
}

var mysqlDialect = dialect{
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS plug_runs (
	id          VARCHAR(64) PRIMARY KEY,
	kind        VARCHAR(64) NOT NULL,
	identifier  VARCHAR(255) NOT NULL,
	owner       VARCHAR(255) NOT NULL DEFAULT '',
	run         INT NOT NULL DEFAULT 0,
	error       TEXT,
	recorded_at VARCHAR(40) NOT NULL,
	INDEX idx_plug_runs_identifier (identifier),
	INDEX idx_plug_runs_recorded_at (recorded_at)
)`,
		`CREATE TABLE IF NOT EXISTS activations (
	kind       VARCHAR(32) NOT NULL,
	identifier VARCHAR(255) NOT NULL,
	disabled   TINYINT(1) NOT NULL DEFAULT 0,
	updated_at VARCHAR(40) NOT NULL,
	PRIMARY KEY (kind, identifier)
)`,
	},
	upsertActivation: `INSERT INTO activations (kind, identifier, disabled, updated_at) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE disabled = VALUES(disabled), updated_at = VALUES(updated_at)`,
}

package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database holding projects, healing progress and
// deployment reports.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the database at the given path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS projects (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    gitlab_id      TEXT NOT NULL,
    jenkins_job    TEXT NOT NULL,
    default_branch TEXT NOT NULL DEFAULT 'main'
);

CREATE TABLE IF NOT EXISTS project_apps (
    project_id TEXT NOT NULL REFERENCES projects(id),
    app_name   TEXT NOT NULL,
    PRIMARY KEY (project_id, app_name)
);

CREATE TABLE IF NOT EXISTS healing_progress (
    project_id TEXT PRIMARY KEY,
    stage      TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS healing_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id TEXT NOT NULL,
    stage      TEXT NOT NULL,
    timestamp  TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_healing_events_project ON healing_events(project_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS deployment_reports (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    attempt_id        TEXT NOT NULL UNIQUE,
    project_id        TEXT NOT NULL,
    title             TEXT NOT NULL,
    summary           TEXT NOT NULL,
    notes             TEXT,
    branch            TEXT NOT NULL,
    merge_request_url TEXT,
    status            TEXT NOT NULL CHECK(status IN ('SUCCESS','FAIL')),
    created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_project ON deployment_reports(project_id, created_at DESC);

CREATE TABLE IF NOT EXISTS report_files (
    report_id INTEGER NOT NULL REFERENCES deployment_reports(id),
    file_name TEXT NOT NULL
);
`

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Package db provides the SQLite connection and schema.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// migrations are applied in order. The schema version stored in
// PRAGMA user_version is the number of migrations already applied.
var migrations = []string{
	// event ledger: append-only history of runs and failed commands
	`CREATE TABLE IF NOT EXISTS event_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload TEXT,
		source TEXT,
		run_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_type_ts ON event_ledger(event_type, timestamp);
	CREATE INDEX IF NOT EXISTS idx_ledger_run ON event_ledger(run_id) WHERE run_id IS NOT NULL AND run_id != '';`,

	// documents: JSON values keyed by (kind, id)
	`CREATE TABLE IF NOT EXISTS documents (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (kind, id)
	);`,
}

// DB is the SQLite handle shared by the ledger and the document store.
type DB struct {
	*sql.DB
}

// Open opens the database in WAL mode and brings the schema up to date.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn}, nil
}

// SchemaVersion reports how many migrations have been applied.
func (d *DB) SchemaVersion() (int, error) {
	return schemaVersion(d.DB)
}

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(migrations))
	}

	for v := current; v < len(migrations); v++ {
		tx, err := conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations[i] brings the schema from version i to i+1.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- One row per distinct "Check System" message ever displayed
CREATE TABLE IF NOT EXISTS system_messages (
    text        TEXT PRIMARY KEY,
    first_seen  TEXT NOT NULL,
    last_seen   TEXT NOT NULL,
    seen_count  INTEGER NOT NULL DEFAULT 1
);

-- Keypresses written to the panel
CREATE TABLE IF NOT EXISTS keypresses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    key         TEXT NOT NULL,
    source      TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL,
    at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_system_messages_last_seen ON system_messages(last_seen);
CREATE INDEX IF NOT EXISTS idx_keypresses_at ON keypresses(at);
`,
}

var currentSchemaVersion = len(migrations)

// Migrate applies every migration newer than the stored schema version,
// each in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		next := v + 1
		err := db.Tx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, next)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply schema v%d: %w", next, err)
		}
		log.Debug().Int("version", next).Msg("Applied schema migration")
	}
	return nil
}

// SchemaVersion returns the applied schema version, or 0 for an empty
// database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&exists)
	if err != nil || !exists {
		return 0, err
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	return version, err
}

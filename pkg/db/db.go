// Package db persists system-message history and the keypress log in
// SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// DB wraps a SQLite database holding system-message history and the
// keypress log.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path. An empty path selects
// $XDG_STATE_HOME/aquabridge/aquabridge.db.
func Open(path string) (*DB, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	dsn := path + "?" + pragmas
	if path == Memory {
		dsn = "file::memory:?" + pragmas
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == Memory {
		// Each connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: sqlDB, path: path}, nil
}

func resolvePath(path string) (string, error) {
	if path == Memory {
		return path, nil
	}
	if path == "" {
		dir, err := stateDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine database path: %w", err)
		}
		path = filepath.Join(dir, "aquabridge", "aquabridge.db")
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return path, nil
}

func stateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state"), nil
}

// Path returns the database file path, or Memory.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Tx executes fn within a transaction, rolling back when fn fails.
func (db *DB) Tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PruneBefore deletes message history not seen since before and
// keypresses older than before, in one transaction.
func (db *DB) PruneBefore(ctx context.Context, before time.Time) (messages, keys int64, err error) {
	cutoff := before.UTC().Format(timeLayout)
	err = db.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM system_messages WHERE last_seen < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("prune system messages: %w", err)
		}
		if messages, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `DELETE FROM keypresses WHERE at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("prune keypresses: %w", err)
		}
		keys, err = res.RowsAffected()
		return err
	})
	return messages, keys, err
}

// Retain prunes history older than keep now and then every interval until
// ctx is done.
func (db *DB) Retain(ctx context.Context, keep, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msgs, keys, err := db.PruneBefore(ctx, time.Now().Add(-keep))
		if err != nil {
			log.Warn().Err(err).Msg("History prune failed")
		} else if msgs+keys > 0 {
			log.Info().Int64("messages", msgs).Int64("keypresses", keys).Msg("Pruned history")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

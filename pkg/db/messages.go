package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrMessageNotFound = errors.New("system message not found")

// timeLayout stores timestamps as sortable UTC text.
const timeLayout = "2006-01-02T15:04:05.000Z"

// SystemMessage is the history of one panel system message.
type SystemMessage struct {
	Text      string    `json:"text"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int64     `json:"count"`
}

// MessageStore keeps the history of every system message observed.
type MessageStore interface {
	Record(ctx context.Context, text string, at time.Time) error
	Get(ctx context.Context, text string) (*SystemMessage, error)
	List(ctx context.Context, limit int) ([]*SystemMessage, error)
}

// Messages returns a MessageStore for this database.
func (db *DB) Messages() MessageStore {
	return &messageStore{db: db}
}

type messageStore struct {
	db *DB
}

func (s *messageStore) Record(ctx context.Context, text string, at time.Time) error {
	ts := at.UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_messages (text, first_seen, last_seen, seen_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(text) DO UPDATE SET
			last_seen = excluded.last_seen,
			seen_count = seen_count + 1
	`, text, ts, ts)
	return err
}

func (s *messageStore) Get(ctx context.Context, text string) (*SystemMessage, error) {
	m := &SystemMessage{}
	var first, last string
	err := s.db.QueryRowContext(ctx, `
		SELECT text, first_seen, last_seen, seen_count
		FROM system_messages WHERE text = ?
	`, text).Scan(&m.Text, &first, &last, &m.Count)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	m.FirstSeen, _ = time.Parse(timeLayout, first)
	m.LastSeen, _ = time.Parse(timeLayout, last)
	return m, nil
}

// List returns messages most recently seen first. A non-positive limit
// returns everything.
func (s *messageStore) List(ctx context.Context, limit int) ([]*SystemMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT text, first_seen, last_seen, seen_count
		FROM system_messages ORDER BY last_seen DESC, text LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*SystemMessage
	for rows.Next() {
		m := &SystemMessage{}
		var first, last string
		if err := rows.Scan(&m.Text, &first, &last, &m.Count); err != nil {
			return nil, err
		}
		m.FirstSeen, _ = time.Parse(timeLayout, first)
		m.LastSeen, _ = time.Parse(timeLayout, last)
		out = append(out, m)
	}
	return out, rows.Err()
}

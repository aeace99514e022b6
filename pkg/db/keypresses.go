package db

import (
	"context"
	"time"
)

// Keypress is one logged key written (or dropped) by the bridge.
type Keypress struct {
	ID     int64     `json:"id"`
	Key    string    `json:"key"`
	Source string    `json:"source"`
	Result string    `json:"result"`
	At     time.Time `json:"at"`
}

// KeyLog records keypresses sent to the panel.
type KeyLog interface {
	Append(ctx context.Context, k *Keypress) error
	Recent(ctx context.Context, limit int) ([]*Keypress, error)
}

// Keypresses returns a KeyLog for this database.
func (db *DB) Keypresses() KeyLog {
	return &keyLog{db: db}
}

type keyLog struct {
	db *DB
}

func (l *keyLog) Append(ctx context.Context, k *Keypress) error {
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO keypresses (key, source, result, at)
		VALUES (?, ?, ?, ?)
	`, k.Key, k.Source, k.Result, k.At.UTC().Format(timeLayout))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	k.ID = id
	return nil
}

// Recent returns the newest keypresses first.
func (l *keyLog) Recent(ctx context.Context, limit int) ([]*Keypress, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, key, source, result, at
		FROM keypresses ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Keypress
	for rows.Next() {
		k := &Keypress{}
		var at string
		if err := rows.Scan(&k.ID, &k.Key, &k.Source, &k.Result, &at); err != nil {
			return nil, err
		}
		k.At, _ = time.Parse(timeLayout, at)
		out = append(out, k)
	}
	return out, rows.Err()
}

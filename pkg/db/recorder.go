package db

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const writeTimeout = 5 * time.Second

// Recorder writes history rows from a background goroutine so callers on
// the device I/O path never wait for SQLite. Writes are dropped when the
// buffer is full.
type Recorder struct {
	db   *DB
	jobs chan func(context.Context) error

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts a recorder with room for buffer pending writes.
func NewRecorder(db *DB, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	r := &Recorder{
		db:   db,
		jobs: make(chan func(context.Context) error, buffer),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := job(ctx); err != nil {
			log.Warn().Err(err).Msg("History write failed")
		}
		cancel()
	}
}

// submit queues job. Submitting after Close is a no-op.
func (r *Recorder) submit(job func(context.Context) error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.jobs <- job:
	default:
		log.Warn().Msg("History buffer full, dropping write")
	}
}

// RecordMessage upserts a system message sighting.
func (r *Recorder) RecordMessage(text string, at time.Time) {
	store := r.db.Messages()
	r.submit(func(ctx context.Context) error {
		return store.Record(ctx, text, at)
	})
}

// RecordKeypress appends to the keypress log.
func (r *Recorder) RecordKeypress(k Keypress) {
	keys := r.db.Keypresses()
	r.submit(func(ctx context.Context) error {
		return keys.Append(ctx, &k)
	})
}

// Close flushes pending writes and stops the recorder.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	<-r.done
}

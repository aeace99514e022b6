package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return d
}

func TestMigrate_Idempotent(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := d.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", v, currentSchemaVersion)
	}
}

func TestMessageStore_RecordAndList(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	store := d.Messages()

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"Low Salt", "Check Flow", "Low Salt"} {
		if err := store.Record(ctx, text, t0.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	m, err := store.Get(ctx, "Low Salt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Count != 2 {
		t.Errorf("count = %d, want 2", m.Count)
	}
	if !m.FirstSeen.Equal(t0) || !m.LastSeen.Equal(t0.Add(2*time.Minute)) {
		t.Errorf("first=%v last=%v", m.FirstSeen, m.LastSeen)
	}

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Text != "Low Salt" || list[1].Text != "Check Flow" {
		t.Errorf("unexpected list order: %+v", list)
	}

	if _, err := store.Get(ctx, "Nope"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestKeyLog(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	log := d.Keypresses()

	now := time.Now().UTC().Truncate(time.Millisecond)
	for _, k := range []string{"menu", "plus", "plus"} {
		if err := log.Append(ctx, &Keypress{Key: k, Source: "http", Result: "sent", At: now}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := log.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d keypresses, want 2", len(recent))
	}
	if recent[0].ID <= recent[1].ID {
		t.Error("expected newest first")
	}
	if !recent[0].At.Equal(now) {
		t.Errorf("at = %v, want %v", recent[0].At, now)
	}
}

func TestRecorder_FlushesOnClose(t *testing.T) {
	d := openTestDB(t)
	r := NewRecorder(d, 16)

	r.RecordMessage("Low Salt", time.Now())
	r.RecordKeypress(Keypress{Key: "menu", Result: "sent", At: time.Now()})
	r.Close()

	// Recording after close must not panic.
	r.RecordMessage("ignored", time.Now())

	ctx := context.Background()
	if _, err := d.Messages().Get(ctx, "Low Salt"); err != nil {
		t.Errorf("message not recorded: %v", err)
	}
	recent, err := d.Keypresses().Recent(ctx, 10)
	if err != nil || len(recent) != 1 {
		t.Errorf("keypress not recorded: %v %+v", err, recent)
	}
}

func TestOpen_Memory(t *testing.T) {
	d, err := Open(Memory)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := d.Messages().Record(ctx, "Low Salt", time.Now()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if d.Path() != Memory {
		t.Errorf("path = %q, want %q", d.Path(), Memory)
	}
}

func TestOpen_DefaultsToStateDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	d, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	want := filepath.Join(dir, "aquabridge", "aquabridge.db")
	if d.Path() != want {
		t.Errorf("path = %q, want %q", d.Path(), want)
	}
}

func TestPruneBefore(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	if err := d.Messages().Record(ctx, "Old", old); err != nil {
		t.Fatal(err)
	}
	if err := d.Messages().Record(ctx, "New", recent); err != nil {
		t.Fatal(err)
	}
	for _, at := range []time.Time{old, old, recent} {
		if err := d.Keypresses().Append(ctx, &Keypress{Key: "menu", Result: "sent", At: at}); err != nil {
			t.Fatal(err)
		}
	}

	msgs, keys, err := d.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if msgs != 1 || keys != 2 {
		t.Errorf("pruned %d messages, %d keypresses; want 1, 2", msgs, keys)
	}

	left, err := d.Keypresses().Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Errorf("got %d keypresses after prune, want 1", len(left))
	}
	if _, err := d.Messages().Get(ctx, "New"); err != nil {
		t.Errorf("recent message pruned: %v", err)
	}
}

func TestRetain_StopsOnCancel(t *testing.T) {
	d := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	if err := d.Keypresses().Append(ctx, &Keypress{Key: "menu", Result: "sent", At: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		d.Retain(ctx, time.Minute, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		left, err := d.Keypresses().Recent(context.Background(), 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(left) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Retain did not prune on start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Retain did not return after cancel")
	}
}

func TestRecorder_CloseIsIdempotentAndConcurrentSafe(t *testing.T) {
	d := openTestDB(t)
	r := NewRecorder(d, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.RecordKeypress(Keypress{Key: "menu", Result: "sent", At: time.Now()})
			}
		}()
	}
	r.Close()
	wg.Wait()
	r.Close()

	r.RecordMessage("after close", time.Now())
	if _, err := d.Messages().Get(context.Background(), "after close"); err == nil {
		t.Error("message recorded after Close")
	}
}

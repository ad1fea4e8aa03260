package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/quill/internal/delta"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// watcherTestEnv sets up a note dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "quill-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return dir, store, db
}

func noteJSON(t *testing.T, id, title, body string) []byte {
	t.Helper()
	now := time.Now().UTC()
	data, err := json.Marshal(models.Note{
		ID:        id,
		Title:     title,
		Content:   delta.FromText(body),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSyncIndexesAndPrunes(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(dir, "n1.json"), noteJSON(t, "n1", "First", "alpha body"), 0o644)
	_ = db.UpsertNote(NoteRow{ID: "gone", Checksum: "stale", UpdatedAt: time.Now()}, "")

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	cs, _ := db.GetChecksum("n1")
	if cs == "" {
		t.Error("n1 not indexed")
	}
	cs, _ = db.GetChecksum("gone")
	if cs != "" {
		t.Error("stale entry not pruned")
	}

	results, _ := db.Search("alpha", 10)
	if len(results) != 1 || results[0].Title != "First" {
		t.Errorf("search = %+v", results)
	}
}

func TestSyncSkipsUnchanged(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(dir, "n1.json"), noteJSON(t, "n1", "First", "body"), 0o644)
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	before, _ := db.GetChecksum("n1")

	// Second pass over an unchanged dir leaves the row as-is.
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	after, _ := db.GetChecksum("n1")
	if before != after {
		t.Errorf("checksum changed across no-op sync: %q -> %q", before, after)
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, dir, logger, func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "new.json"), noteJSON(t, "new", "New Note", "fresh"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new" {
				return true
			}
		}
		return false
	}, "expected created:new callback")
}

func TestWatcher_AtomicWriteIndexed(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, dir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	// Store writes go through a temp file rename; the watcher must pick
	// up the final document, not the dotted temp.
	if err := store.Write("atomic", noteJSON(t, "atomic", "Atomic", "via rename")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("atomic")
		return cs != ""
	}, "atomically written file not indexed")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(dir, "del.json"), noteJSON(t, "del", "Delete Me", "x"), 0o644)
	Sync(db, store, logger)

	cs, _ := db.GetChecksum("del")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, dir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(dir, "old.json"), noteJSON(t, "old", "Rename", "x"), 0o644)
	Sync(db, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, dir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.json"), filepath.Join(dir, "renamed.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old")
		newCS, _ := db.GetChecksum("renamed")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old id should be removed and new id indexed")
}

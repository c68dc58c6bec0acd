package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/getsentry/memtrace/internal/storageprovider"
	"github.com/getsentry/memtrace/internal/storageutil"
)

func TestCleanupLocalRemovesOnlyStaleCtfFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.ctf"), time.Now().Add(-48*time.Hour))
	writeFile(t, filepath.Join(root, "new.ctf"), time.Now())
	writeFile(t, filepath.Join(root, "old.txt"), time.Now().Add(-48*time.Hour))
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeFile(t, filepath.Join(sub, "old.ctf"), time.Now().Add(-48*time.Hour))

	timeLimit := time.Now().Add(-24 * time.Hour)
	if err := cleanup("local", root, timeLimit); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	assertExists(t, filepath.Join(root, "new.ctf"), true)
	assertExists(t, filepath.Join(root, "old.ctf"), false)
	assertExists(t, filepath.Join(root, "old.txt"), true)
	assertExists(t, filepath.Join(sub, "old.ctf"), false)
}

func TestCleanupBadgerSweepsStaleEntries(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	b := &storageprovider.Badger{DB: db}
	w, err := b.Put(ctx, "old-session")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := w.Write([]byte("stale-bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close db: %v", err)
	}

	timeLimit := time.Now().Add(24 * time.Hour) // future cutoff: every entry is stale
	if err := cleanup("badger", dir, timeLimit); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		t.Fatalf("badger.Open (reopen): %v", err)
	}
	defer db.Close()
	b = &storageprovider.Badger{DB: db}
	if _, err := b.Get(ctx, "old-session"); err != storageutil.ErrObjectNotFound {
		t.Fatalf("expected old-session to be swept, got err=%v", err)
	}
}

func writeFile(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func assertExists(t *testing.T, path string, want bool) {
	t.Helper()
	_, err := os.Stat(path)
	got := err == nil
	if got != want {
		t.Errorf("exists(%s) = %v, want %v", path, got, want)
	}
}

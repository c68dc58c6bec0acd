package storageprovider

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/getsentry/memtrace/internal/storageutil"
)

func TestLocalPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := &Local{Root: t.TempDir()}

	w, err := l.Put(ctx, "sub/dir/trace.ctf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(l.Root, "sub/dir/trace.ctf")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	r, err := l.Get(ctx, "sub/dir/trace.ctf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("got %q, want %q", b, "hello")
	}
	if r.Size() != 5 {
		t.Fatalf("got size %d, want 5", r.Size())
	}
}

func TestLocalGetMissing(t *testing.T) {
	l := &Local{Root: t.TempDir()}
	_, err := l.Get(context.Background(), "missing.ctf")
	if err != storageutil.ErrObjectNotFound {
		t.Fatalf("got %v, want ErrObjectNotFound", err)
	}
}

func TestBadgerPutGetRoundTrip(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	defer db.Close()

	b := &Badger{DB: db}
	ctx := context.Background()

	w, err := b.Put(ctx, "session-1")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := w.Write([]byte("trace-bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := b.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "trace-bytes" {
		t.Fatalf("got %q, want %q", got, "trace-bytes")
	}
}

func TestBadgerGetMissing(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	defer db.Close()

	b := &Badger{DB: db}
	_, err = b.Get(context.Background(), "missing")
	if err != storageutil.ErrObjectNotFound {
		t.Fatalf("got %v, want ErrObjectNotFound", err)
	}
}

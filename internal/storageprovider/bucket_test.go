package storageprovider

import (
	"context"
	"io"
	"testing"

	"github.com/getsentry/memtrace/internal/storageutil"
)

func TestBucketFileSchemeRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBucket(ctx, "file://"+dir+"?create_dir=1")
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	defer b.Close()

	w, err := b.Put(ctx, "trace.ctf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := w.Write([]byte("packet-bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := b.Get(ctx, "trace.ctf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "packet-bytes" {
		t.Fatalf("got %q, want %q", got, "packet-bytes")
	}
}

func TestBucketGetMissing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBucket(ctx, "file://"+dir+"?create_dir=1")
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	defer b.Close()

	_, err = b.Get(ctx, "missing.ctf")
	if err != storageutil.ErrObjectNotFound {
		t.Fatalf("got %v, want ErrObjectNotFound", err)
	}
}

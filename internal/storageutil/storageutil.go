// Package storageutil provides the destination abstraction shared by
// the trace writer and reader: a trace is addressed by name against an
// ObjectHandler, regardless of whether that handler is backed by a
// local file, a cloud bucket, or an embedded key-value store.
package storageutil

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
)

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

// ReadSizeCloser is a readable object of known size.
type ReadSizeCloser interface {
	io.Reader
	io.Closer
	Size() int64
}

// ObjectHandler provides a common interface for multiple storage
// providers to hold a trace's raw byte stream.
type ObjectHandler interface {
	// Put opens name for writing. The caller must Close the returned
	// writer to commit the object.
	Put(ctx context.Context, name string) (io.WriteCloser, error)
	// Get opens name for reading. It returns ErrObjectNotFound if name
	// does not exist.
	Get(ctx context.Context, name string) (ReadSizeCloser, error)
}

// putTimeout bounds how long a single object open may block; the
// writer's flush must succeed in full or fail outright, never hang.
const putTimeout = 30 * time.Second

// OpenWriter opens name on b for writing the trace's raw byte stream.
// If compress is true the stream is wrapped in an LZ4 frame so the
// object at rest is smaller; the wire format inside is untouched.
func OpenWriter(ctx context.Context, b ObjectHandler, name string, compress bool) (io.WriteCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	w, err := b.Put(ctx, name)
	if err != nil {
		cancel()
		return nil, err
	}
	if !compress {
		return &cancelWriteCloser{w, cancel}, nil
	}
	zw := lz4.NewWriter(w)
	return &lz4WriteCloser{zw: zw, under: w, cancel: cancel}, nil
}

// OpenReader opens name on b for reading the trace's raw byte stream,
// transparently undoing the LZ4 envelope OpenWriter may have applied.
func OpenReader(ctx context.Context, b ObjectHandler, name string, compressed bool) (io.ReadCloser, error) {
	r, err := b.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !compressed {
		return r, nil
	}
	return &lz4ReadCloser{zr: lz4.NewReader(r), under: r}, nil
}

// CompressedSuffix marks a name as carrying the LZ4 envelope
// OptionalCompress/OptionalDecompress apply, so a destination URL or
// path decides its own compression rather than a caller passing a bool.
const CompressedSuffix = ".lz4"

// OptionalCompress opens name on b for writing, same as OpenWriter, but
// decides whether to apply the LZ4 envelope from name itself: a name
// ending in CompressedSuffix gets one, any other name doesn't.
func OptionalCompress(ctx context.Context, b ObjectHandler, name string) (io.WriteCloser, error) {
	return OpenWriter(ctx, b, name, strings.HasSuffix(name, CompressedSuffix))
}

// OptionalDecompress opens name on b for reading, same as OpenReader,
// but decides whether to undo the LZ4 envelope from name itself: a name
// ending in CompressedSuffix is treated as compressed, any other name
// isn't.
func OptionalDecompress(ctx context.Context, b ObjectHandler, name string) (io.ReadCloser, error) {
	return OpenReader(ctx, b, name, strings.HasSuffix(name, CompressedSuffix))
}

type cancelWriteCloser struct {
	io.WriteCloser
	cancel context.CancelFunc
}

func (c *cancelWriteCloser) Close() error {
	defer c.cancel()
	return c.WriteCloser.Close()
}

type lz4WriteCloser struct {
	zw     *lz4.Writer
	under  io.WriteCloser
	cancel context.CancelFunc
}

func (l *lz4WriteCloser) Write(p []byte) (int, error) {
	return l.zw.Write(p)
}

func (l *lz4WriteCloser) Close() error {
	defer l.cancel()
	if err := l.zw.Close(); err != nil {
		_ = l.under.Close()
		return err
	}
	return l.under.Close()
}

type lz4ReadCloser struct {
	zr    *lz4.Reader
	under ReadSizeCloser
}

func (l *lz4ReadCloser) Read(p []byte) (int, error) {
	return l.zr.Read(p)
}

func (l *lz4ReadCloser) Close() error {
	return l.under.Close()
}

package storageprovider

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/getsentry/memtrace/internal/storageutil"
)

// Local implements storageutil.ObjectHandler over the filesystem. This
// is the default destination for the .ctf convention of spec section 6:
// name is a relative or absolute path, created with its parent
// directories on Put.
type Local struct {
	Root string
}

func (l *Local) path(name string) string {
	if l.Root == "" {
		return name
	}
	return filepath.Join(l.Root, name)
}

// Put creates name (and its parent directories) for writing.
func (l *Local) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	p := l.path(name)
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(p)
}

// Get opens name for reading.
func (l *Local) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	f, err := os.Open(l.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &localFile{f: f, size: info.Size()}, nil
}

type localFile struct {
	f    *os.File
	size int64
}

func (l *localFile) Read(p []byte) (int, error) { return l.f.Read(p) }
func (l *localFile) Close() error                { return l.f.Close() }
func (l *localFile) Size() int64                 { return l.size }

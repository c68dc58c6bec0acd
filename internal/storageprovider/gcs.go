package storageprovider

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"

	"github.com/getsentry/memtrace/internal/storageutil"
)

// Gcs implements storageutil.ObjectHandler directly against a Google
// Cloud Storage bucket handle. Kept close to vroom's original
// storageprovider.Gcs (which predates the bucket.go gocloud.dev/blob
// generalization) because cloud.google.com/go/storage's *storage.Reader
// already satisfies storageutil.ReadSizeCloser without adaptation, and
// because it is what the fake-gcs-server-based tests exercise directly.
type Gcs struct {
	BucketHandle *storage.BucketHandle
}

// Put writes a file to the bucket with name being the object path.
func (g *Gcs) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return g.BucketHandle.Object(name).NewWriter(ctx), nil
}

// Get reads a file from the bucket with name being the object path.
// It returns storageutil.ErrObjectNotFound if the object does not exist.
func (g *Gcs) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	rc, err := g.BucketHandle.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	return rc, nil
}

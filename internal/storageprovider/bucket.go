package storageprovider

import (
	"context"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Register the file:// URL scheme driver used by OpenBucket below.
	// Additional drivers (gcsblob, s3blob, azureblob) register the same
	// way if a caller imports them for their side effect.
	_ "gocloud.dev/blob/fileblob"

	"github.com/getsentry/memtrace/internal/storageutil"
)

// Bucket implements storageutil.ObjectHandler over a gocloud.dev/blob
// bucket, so a trace destination can be any URL a registered driver
// understands without the writer or reader caring which. Gcs below
// covers Google Cloud Storage directly; Bucket exists for everything
// else a deployment might point a trace destination at, file:// first.
type Bucket struct {
	Bucket *blob.Bucket
}

// OpenBucket opens the bucket addressed by urlstr (e.g. "gs://my-bucket"
// or "file:///var/lib/traces") and wraps it as a Bucket.
func OpenBucket(ctx context.Context, urlstr string) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, err
	}
	return &Bucket{Bucket: b}, nil
}

// Put opens name for writing.
func (g *Bucket) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return g.Bucket.NewWriter(ctx, name, nil)
}

// Get opens name for reading. It returns storageutil.ErrObjectNotFound
// if name does not exist.
func (g *Bucket) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	r, err := g.Bucket.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	return r, nil
}

// Close releases the underlying bucket handle.
func (g *Bucket) Close() error {
	return g.Bucket.Close()
}

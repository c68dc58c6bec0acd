package storageprovider

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/getsentry/memtrace/internal/storageutil"
)

// modTimeHeaderSize is the width of the big-endian Unix-second write
// timestamp Put prepends to every value, so Sweep can age out entries
// without badger's own TTL (which would need the retention window at
// write time, not at sweep time).
const modTimeHeaderSize = 8

// Badger implements storageutil.ObjectHandler over an embedded
// key-value store, so a "trace library" of many named traces can live
// in one database instead of one file per trace.
//
// Adapted from vroom's storageprovider.Badger.
type Badger struct {
	DB *badger.DB
}

// Put buffers writes in memory and commits them as a single key on
// Close, since badger has no notion of a streaming object writer.
func (b *Badger) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return &badgerWriter{
		db:   b.DB,
		name: name,
	}, nil
}

// Get reads name from the store. It returns storageutil.ErrObjectNotFound
// if name does not exist.
func (b *Badger) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	txn := b.DB.NewTransaction(false)
	item, err := txn.Get([]byte(name))
	if err != nil {
		txn.Discard()
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		txn.Discard()
		return nil, err
	}
	value = stripModTime(value)

	return &badgerReader{
		txn:    txn,
		reader: bytes.NewReader(value),
		size:   int64(len(value)),
	}, nil
}

// Sweep deletes every entry last written before cutoff, the
// Badger-backed counterpart to a directory walk's mtime check. It
// returns the number of entries removed.
func (b *Badger) Sweep(cutoff time.Time) (int, error) {
	var stale [][]byte
	err := b.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				if writeTime(val).Before(cutoff) {
					stale = append(stale, append([]byte{}, item.Key()...))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = b.DB.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// stripModTime removes the write-timestamp header Put prepends,
// leaving the caller-visible object bytes Get returns.
func stripModTime(value []byte) []byte {
	if len(value) < modTimeHeaderSize {
		return value
	}
	return value[modTimeHeaderSize:]
}

// writeTime parses the write-timestamp header Put prepends.
func writeTime(value []byte) time.Time {
	if len(value) < modTimeHeaderSize {
		return time.Time{}
	}
	return time.Unix(int64(binary.BigEndian.Uint64(value[:modTimeHeaderSize])), 0)
}

type badgerWriter struct {
	db   *badger.DB
	name string
	buf  bytes.Buffer
}

func (bw *badgerWriter) Write(p []byte) (int, error) {
	return bw.buf.Write(p)
}

func (bw *badgerWriter) Close() error {
	value := make([]byte, modTimeHeaderSize+bw.buf.Len())
	binary.BigEndian.PutUint64(value[:modTimeHeaderSize], uint64(time.Now().Unix()))
	copy(value[modTimeHeaderSize:], bw.buf.Bytes())
	return bw.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(bw.name), value)
	})
}

type badgerReader struct {
	txn    *badger.Txn
	reader io.Reader
	size   int64
}

func (b *badgerReader) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func (b *badgerReader) Close() error {
	b.txn.Discard()
	return nil
}

func (b *badgerReader) Size() int64 {
	return b.size
}

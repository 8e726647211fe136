// Package blobstore persists the original uploaded contract files so any
// chunk citation can be traced back to its source bytes.
package blobstore

import (
	"context"
	"io"
)

// BlobStore stores raw uploaded documents by key. Put returns the
// source URI recorded on chunks and registry records.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

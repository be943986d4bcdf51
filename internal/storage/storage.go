package storage

import (
	"context"
	"io"
)

// BlobStore abstracts the object storage holding encrypted file bytes.
type BlobStore interface {
	Put(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
}

package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key has no stored bytes.
var ErrObjectNotFound = errors.New("storage: object not found")

// BlobStore persists document bytes outside the relational database.
type BlobStore interface {
	Name() string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys last modified before the cutoff.
	Keys(ctx context.Context, modifiedBefore time.Time) ([]string, error)
}

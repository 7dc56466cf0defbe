// Package object defines the storage contract for bucket-hosted archives.
package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// Object holds metadata about a stored archive.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	CustomMeta   map[string]string
}

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Lifecycle defines init/teardown behavior.
type Lifecycle interface {
	Init(ctx context.Context, param any) error
	Close(ctx context.Context) error
}

// Reader exposes read-related operations.
type Reader interface {
	// Get returns object metadata and a stream the caller must close.
	Get(ctx context.Context, key string) (Object, io.ReadCloser, error)
	// Stat returns metadata without streaming the body.
	Stat(ctx context.Context, key string) (Object, error)
}

// Writer exposes write-related operations.
type Writer interface {
	// Put uploads content, splitting it into parts when it is large, and
	// returns the stored metadata.
	Put(ctx context.Context, key string, r io.Reader, contentType string, meta map[string]string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// ObjectStorage aggregates the full contract for object backends.
type ObjectStorage interface {
	Lifecycle
	Reader
	Writer
}

// Exists reports whether key is present in s.
func Exists(ctx context.Context, s Reader, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

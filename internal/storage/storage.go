package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
	ETag     string
	Metadata map[string]string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Storage is a flat key/value blob store addressed by slash-separated keys.
// List is recursive and handles pagination internally; ListDirs returns the
// immediate child prefixes (each ending in "/") of a prefix.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	ListDirs(ctx context.Context, prefix string) ([]string, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Location() string
}

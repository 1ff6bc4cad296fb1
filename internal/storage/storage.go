// Package storage defines the object-storage port used by the document
// pipeline and the offloader that moves staged files into it.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when an object is not found in storage.
var ErrObjectNotFound = errors.New("object not found")

// ObjectMetadata carries optional metadata stored alongside an object.
type ObjectMetadata struct {
	ContentType   string
	ContentLength int64
	UserMetadata  map[string]string
}

// ObjectInfo describes one stored object in a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ObjectStorage is the port for key-addressed blob storage.
type ObjectStorage interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, reader io.Reader, metadata ObjectMetadata) error

	// Get retrieves an object. Returns ErrObjectNotFound for missing keys.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the objects whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Exists checks whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

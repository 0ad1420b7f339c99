package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetObject when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is a handle to a single bucket on a remote object store.
//
// Implementations must be safe for concurrent use. A Store is shared by
// reference between every in-flight upload; copying the handle does not open
// new connections.
type Store interface {
	// PutObject uploads data under key, replacing any existing object.
	PutObject(ctx context.Context, key string, data []byte) error

	// GetObject downloads the object stored under key. It returns ErrNotFound
	// if the key does not exist.
	GetObject(ctx context.Context, key string) ([]byte, error)
}

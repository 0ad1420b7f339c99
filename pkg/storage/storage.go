package storage

import "context"

// Storage is the capability shared by every blob backend. Keys are opaque to
// the backend; uniqueness and collision policy belong to the caller.
type Storage interface {
	// Save stores data under key. A nil error means the backend accepted the
	// blob. For the local backend that means it is on disk; for the remote
	// backend it only means the upload has been scheduled.
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the full blob stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
}

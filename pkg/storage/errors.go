package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned when a local storage root does not exist.
	ErrInvalidPath = errors.New("storage path does not exist")

	// ErrInvalidRemoteConfig is returned when remote storage parameters cannot
	// be turned into a usable client.
	ErrInvalidRemoteConfig = errors.New("invalid remote storage configuration")

	// ErrNotFound is returned by Load when nothing is stored under the key.
	ErrNotFound = errors.New("blob not found")

	// ErrRetryExhausted marks a background upload that failed on every
	// attempt. It is only ever logged, never returned from Save.
	ErrRetryExhausted = errors.New("upload retries exhausted")

	// ErrClosed is returned when an upload can no longer be scheduled.
	ErrClosed = errors.New("storage is closed")
)

// RemoteError wraps a failure reported by the remote object store.
type RemoteError struct {
	Op  string
	Key string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stash/internal/objectstore"
	"stash/pkg/storage"
)

// RemoteStorage is a storage.Storage over a remote object store.
//
// Writes are fire-and-forget: Save copies the blob, hands an upload to the
// scheduler and returns. The upload retries with backoff on its own and
// reports failure only through logs, traces and metrics. Reads are a single
// synchronous GetObject without retry.
//
// Saves to the same key are not ordered. Concurrent uploads race and the
// last attempt to succeed decides what is stored, which is not necessarily
// the last Save issued.
type RemoteStorage struct {
	store     objectstore.Store
	uploader  *Uploader
	scheduler Scheduler
	tasks     *TaskGroup
	logger    *slog.Logger
}

// NewRemoteStorage wraps store. Unless WithScheduler is given, uploads run on
// a TaskGroup owned by the returned storage and drained by Close.
func NewRemoteStorage(store objectstore.Store, opts ...RemoteOption) (*RemoteStorage, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: object store must not be nil", storage.ErrInvalidRemoteConfig)
	}

	o := newRemoteOptions(opts)
	if o.policy.Attempts < 0 {
		return nil, fmt.Errorf("%w: negative retry count %d", storage.ErrInvalidRemoteConfig, o.policy.Attempts)
	}

	s := &RemoteStorage{
		store:     store,
		uploader:  newUploader(store, o),
		scheduler: o.scheduler,
		logger:    o.logger,
	}

	if s.scheduler == nil {
		s.tasks = NewTaskGroup(o.logger)
		s.scheduler = s.tasks
	}

	return s, nil
}

// Save schedules an upload of data under key and returns without waiting for
// it. A nil error means the upload was accepted, not that it is stored. The
// only error is a scheduler that no longer accepts work.
func (s *RemoteStorage) Save(ctx context.Context, key string, data []byte) error {
	blob := bytes.Clone(data)

	// Keep the caller's values (trace parent, logger attrs) but not its
	// deadline; the upload outlives the request.
	detached := context.WithoutCancel(ctx)

	err := s.scheduler.Go(func(taskCtx context.Context) {
		ctx, cancel := context.WithCancel(detached)
		defer cancel()
		stop := context.AfterFunc(taskCtx, cancel)
		defer stop()

		s.uploader.Run(ctx, key, blob)
	})
	if err != nil {
		return fmt.Errorf("schedule upload of %q: %w", key, err)
	}

	s.logger.Debug("Upload scheduled", "key", key, "size", len(blob))
	return nil
}

// Load fetches the blob stored under key with a single GetObject call.
func (s *RemoteStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.store.GetObject(ctx, key)
	if err != nil {
		remoteErr := &storage.RemoteError{Op: "get", Key: key, Err: err}
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", storage.ErrNotFound, remoteErr)
		}
		return nil, remoteErr
	}
	return data, nil
}

// Close stops accepting saves and waits for in-flight uploads, cancelling
// them if ctx ends first. It does nothing when the scheduler was supplied by
// the caller.
func (s *RemoteStorage) Close(ctx context.Context) error {
	if s.tasks == nil {
		return nil
	}
	return s.tasks.Shutdown(ctx)
}

var _ storage.Storage = (*RemoteStorage)(nil)

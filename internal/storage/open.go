package storage

import (
	"context"
	"fmt"

	"stash/internal/config"
	"stash/internal/objectstore"
	"stash/pkg/storage"
)

// Backend is the storage selected at startup. Close drains pending uploads
// for the remote backend and is a no-op for the local one.
type Backend interface {
	storage.Storage
	Close(ctx context.Context) error
}

// Open builds the backend named by cfg.Backend. opts only apply to the
// remote backend; the retry budget comes from cfg.Remote.Retries unless an
// option overrides it.
func Open(ctx context.Context, cfg config.Config, opts ...RemoteOption) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		local, err := NewLocalFileStorage(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return localBackend{local}, nil

	case config.BackendRemote:
		store, err := objectstore.New(ctx, cfg.Remote)
		if err != nil {
			return nil, err
		}
		opts = append([]RemoteOption{WithRetries(cfg.Remote.Retries)}, opts...)
		remote, err := NewRemoteStorage(store, opts...)
		if err != nil {
			return nil, err
		}
		return remote, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

type localBackend struct {
	*LocalFileStorage
}

func (localBackend) Close(context.Context) error {
	return nil
}

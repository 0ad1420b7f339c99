package objectstore

import (
	"context"
	"fmt"

	"stash/internal/config"
	"stash/pkg/storage"

	"github.com/minio/minio-go/v7/pkg/s3utils"
)

// New creates the Store selected by cfg.Provider. Any parameter that cannot be
// turned into a usable client yields an error wrapping
// storage.ErrInvalidRemoteConfig.
func New(ctx context.Context, cfg config.Remote) (Store, error) {
	if cfg.Provider == config.ProviderMemory {
		return NewMemoryStore(), nil
	}

	if err := s3utils.CheckValidBucketNameStrict(cfg.Bucket); err != nil {
		return nil, fmt.Errorf("%w: bucket %q: %w", storage.ErrInvalidRemoteConfig, cfg.Bucket, err)
	}

	switch cfg.Provider {
	case config.ProviderMinio:
		store, err := NewMinioStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrInvalidRemoteConfig, err)
		}
		return store, nil

	case config.ProviderAWS:
		if cfg.Region == "" {
			return nil, fmt.Errorf("%w: region must not be empty", storage.ErrInvalidRemoteConfig)
		}
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrInvalidRemoteConfig, err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unknown provider %q", storage.ErrInvalidRemoteConfig, cfg.Provider)
	}
}

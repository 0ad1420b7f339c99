package storage_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"stash/internal/storage"
	pkgstorage "stash/pkg/storage"

	"github.com/stretchr/testify/require"
)

func TestNewLocalFileStorageMissingDir(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "does-not-exist")

	engine, err := storage.NewLocalFileStorage(missing)
	require.Nil(t, engine)
	require.True(t, errors.Is(err, pkgstorage.ErrInvalidPath), "got %v", err)

	_, statErr := os.Stat(missing)
	require.True(t, errors.Is(statErr, fs.ErrNotExist), "construction must not create the directory")
}

func TestLocalFileStorageRoundTrip(t *testing.T) {
	t.Parallel()

	large := make([]byte, 8<<20)
	_, err := rand.Read(large)
	require.NoError(t, err)

	payloads := map[string][]byte{
		"empty":  {},
		"small":  []byte("hello local storage"),
		"binary": {0x00, 0xff, 0x10, 0x00},
		"large":  large,
	}

	dataDir := t.TempDir()
	engine, err := storage.NewLocalFileStorage(dataDir)
	require.NoError(t, err)

	for key, payload := range payloads {
		require.NoError(t, engine.Save(t.Context(), key, payload), "Save %s", key)

		info, err := os.Stat(filepath.Join(dataDir, key))
		require.NoError(t, err, "expected object file to exist")
		require.False(t, info.IsDir(), "object path should be a file")

		got, err := engine.Load(t.Context(), key)
		require.NoError(t, err, "Load %s", key)
		require.True(t, bytes.Equal(payload, got), "payload mismatch for %s", key)
	}
}

func TestLocalFileStorageOverwrite(t *testing.T) {
	t.Parallel()

	engine, err := storage.NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, engine.Save(t.Context(), "k", []byte("a much longer first version")))
	require.NoError(t, engine.Save(t.Context(), "k", []byte("v2")))

	got, err := engine.Load(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}

func TestLocalFileStorageOverwriteKeepsMode(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	engine, err := storage.NewLocalFileStorage(dataDir)
	require.NoError(t, err)

	path := filepath.Join(dataDir, "private")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	require.NoError(t, engine.Save(t.Context(), "private", []byte("v2")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLocalFileStorageWritesThroughSymlink(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	engine, err := storage.NewLocalFileStorage(dataDir)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "target")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dataDir, "link")))

	require.NoError(t, engine.Save(t.Context(), "link", []byte("new")))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)

	info, err := os.Lstat(filepath.Join(dataDir, "link"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&fs.ModeSymlink, "key should still be a symlink")
}

func TestLocalFileStorageReadOnlyFile(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}

	dataDir := t.TempDir()
	engine, err := storage.NewLocalFileStorage(dataDir)
	require.NoError(t, err)

	path := filepath.Join(dataDir, "sealed")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o444))

	err = engine.Save(t.Context(), "sealed", []byte("replace"))
	require.True(t, errors.Is(err, fs.ErrPermission), "got %v", err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("keep"), got)
}

func TestLocalFileStorageLoadMissing(t *testing.T) {
	t.Parallel()

	engine, err := storage.NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = engine.Load(t.Context(), "missing")
	require.True(t, errors.Is(err, pkgstorage.ErrNotFound), "got %v", err)
	require.True(t, errors.Is(err, fs.ErrNotExist), "underlying filesystem error should be kept")

	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
}

func TestLocalFileStorageAbsoluteKey(t *testing.T) {
	t.Parallel()

	engine, err := storage.NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	elsewhere := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, engine.Save(t.Context(), elsewhere, []byte("absolute")))

	got, err := os.ReadFile(elsewhere)
	require.NoError(t, err)
	require.Equal(t, []byte("absolute"), got)
}

func TestLocalFileStorageMissingParentDir(t *testing.T) {
	t.Parallel()

	engine, err := storage.NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	err = engine.Save(t.Context(), "no/such/dir/blob", []byte("data"))
	require.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
	require.False(t, errors.Is(err, pkgstorage.ErrInvalidPath))

	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
	require.Equal(t, engine.ObjectPath("no/such/dir/blob"), pathErr.Path)
}

func TestLocalFileStorageRootRemovedAfterConstruction(t *testing.T) {
	t.Parallel()

	dataDir := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	engine, err := storage.NewLocalFileStorage(dataDir)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dataDir))

	err = engine.Save(t.Context(), "k", []byte("data"))
	require.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemStore implements ObjectStore on the local filesystem.
type FilesystemStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem-based object store rooted at rootDir.
func NewFilesystemStore(rootDir string, logger zerolog.Logger) *FilesystemStore {
	return &FilesystemStore{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "storage").Logger(),
	}
}

// Put writes data under key, creating parent directories as needed.
func (fs *FilesystemStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	fullPath := filepath.Join(fs.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit file: %w", err)
	}

	fs.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("filesystem storage: object stored")
	return nil
}

// Get reads the object stored under key.
func (fs *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(fs.rootDir, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object under key. Missing objects are not an error.
func (fs *FilesystemStore) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(fs.rootDir, filepath.FromSlash(key))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (fs *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(fs.rootDir, filepath.FromSlash(key)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CheckAccess verifies the storage directory exists and is writable,
// creating it if missing.
func (fs *FilesystemStore) CheckAccess(ctx context.Context) error {
	if err := os.MkdirAll(fs.rootDir, 0755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		return fmt.Errorf("cannot access storage root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root is not a directory: %s", fs.rootDir)
	}
	return nil
}

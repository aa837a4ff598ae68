package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const blobExt = ".json"

// File stores each key as one file inside a data directory.
// Writes go to a temp file that is renamed over the target, so a crash never
// leaves a half-written blob behind.
type File struct {
	dir string
}

// NewFile creates the data directory if needed. A leading "~/" is expanded to
// the user's home directory.
func NewFile(dir string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file storage: path is required")
	}

	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}

		dir = filepath.Join(home, dir[2:])
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &File{dir: dir}, nil
}

// Dir returns the data directory.
func (f *File) Dir() string { return f.dir }

// pathFor maps a key to a file name that is safe on every filesystem.
func (f *File) pathFor(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+blobExt)
}

// Get returns the blob stored at key. A missing file means no blob.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable(DriverFile, err)
	}

	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}

		return "", false, unavailable(DriverFile, fmt.Errorf("reading blob: %w", err))
	}

	return string(data), true, nil
}

// Set atomically replaces the blob stored at key.
func (f *File) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(DriverFile, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".blob-*")
	if err != nil {
		return unavailable(DriverFile, fmt.Errorf("creating temp file: %w", err))
	}

	tmpName := tmp.Name()

	_, writeErr := tmp.WriteString(value)
	closeErr := tmp.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return unavailable(DriverFile, fmt.Errorf("writing blob: %w", err))
	}

	if err := os.Rename(tmpName, f.pathFor(key)); err != nil {
		_ = os.Remove(tmpName)
		return unavailable(DriverFile, fmt.Errorf("replacing blob: %w", err))
	}

	return nil
}

// Name implements ports.HealthChecker.
func (f *File) Name() string { return DriverFile }

// Check verifies the data directory still exists and is a directory.
func (f *File) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", f.dir)
	}

	return nil
}

// Close implements io.Closer.
func (f *File) Close() error { return nil }

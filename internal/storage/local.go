package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps intermediate files on local disk while the keying step
// runs. It is not part of the Gateway; published objects always go to S3.
type LocalStore struct {
	tempDir string
}

// NewLocalStore creates a new LocalStore.
// If tempDir is empty, a "textbehind" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStore(tempDir string) (*LocalStore, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "textbehind")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStore{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStore) TempDir() string {
	return s.tempDir
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStore) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// Cleanup removes the specified temporary files.
// It continues even if some files fail to delete, returning the first error.
func (s *LocalStore) Cleanup(paths []string) error {
	var firstErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove %q: %w", p, err)
		}
	}
	return firstErr
}

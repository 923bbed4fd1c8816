// Package imagestore keeps receipt photos in a directory shared by the bot
// and the worker. Records and jobs refer to a photo by its file name.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "derroche/internal/errors"
)

// Store saves and loads receipt images by reference.
type Store interface {
	Save(ctx context.Context, userID int64, data []byte) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// FileStore is a Store backed by a local or mounted directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes data under a fresh reference of the form <user>_<timestamp>_<id>.jpg.
func (s *FileStore) Save(ctx context.Context, userID int64, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating image id: %w", err)
	}
	ref := fmt.Sprintf("%d_%s_%s.jpg", userID, time.Now().UTC().Format("20060102_150405"), id.String()[:8])

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("closing image: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, ref)); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("storing image: %w", err)
	}
	return ref, nil
}

// Load reads the image stored under ref.
func (s *FileStore) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.ErrImageNotFound, err)
		}
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// Delete removes the image stored under ref. Missing images are ignored.
func (s *FileStore) Delete(_ context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// path resolves ref inside the store directory, rejecting anything that is
// not a plain file name.
func (s *FileStore) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", apperrors.WithMessage(apperrors.ErrImageNotFound, "invalid image reference")
	}
	return filepath.Join(s.dir, ref), nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tracklog/apiserver/config"
)

// Backend is the write side of an object store that holds pruned activity
// batches. Archives are written once and never read back by the service.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// Storage wraps the Backend selected by ARCHIVE_BACKEND.
type Storage struct {
	backend Backend
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// NewFromConfig builds the archive storage selected by ARCHIVE_BACKEND and
// makes sure its bucket exists. It returns nil when archiving is disabled.
func NewFromConfig(ctx context.Context, cfg config.Config) (*Storage, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.ArchiveBackend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendMinio:
		backend, err = newMinioArchive(cfg.Minio)
	case config.BackendGCS:
		backend, err = newGCSArchive(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.ArchiveBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s archive: %w", cfg.ArchiveBackend, err)
	}

	s := NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure archive bucket %q: %w", s.Bucket(), err)
	}
	return s, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads one archive batch under key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if key == "" {
		return errors.New("archive key is required")
	}
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return fmt.Errorf("upload %s/%s: %w", s.backend.Bucket(), key, err)
	}
	return nil
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

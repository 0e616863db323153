package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/dukerupert/verdandi/internal"
)

// Storage defines the interface for file storage operations.
// Invoices are the main tenant: "invoices/<order guid>/<number>.pdf".
type Storage interface {
	// Put stores a file and returns its URL/path for retrieval.
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)

	// Get retrieves a file by its key.
	// Returns an io.ReadCloser that must be closed by the caller.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a file by its key.
	// Returns nil if the file doesn't exist (idempotent).
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for accessing a stored file.
	URL(key string) string

	// Exists checks if a file exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// NewStorage creates a Storage implementation based on configuration.
func NewStorage(ctx context.Context, cfg internal.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Bucket:       cfg.Bucket,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			AccessKeyID:  cfg.AccessKeyID,
			SecretKey:    cfg.SecretKey,
			PublicURL:    cfg.PublicURL,
			UsePathStyle: cfg.Endpoint != "",
		})
	case "r2":
		return NewR2Storage(ctx, R2Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.AccessKeyID,
			SecretKey:   cfg.SecretKey,
			BucketName:  cfg.Bucket,
			PublicURL:   cfg.PublicURL,
		})
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
}

// checkKey rejects keys that are empty, absolute or climb out of the root.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidKey
	}
	return nil
}

package storage

import (
	"github.com/dukerupert/verdandi/internal/domain"
)

var (
	// ErrR2AccountIDRequired is returned when R2 account ID is missing.
	ErrR2AccountIDRequired = domain.Errorf(domain.EINVALID, "storage.r2", "R2 account ID is required")

	// ErrCredentialsRequired is returned when object storage credentials are missing.
	ErrCredentialsRequired = domain.Errorf(domain.EINVALID, "storage.s3", "storage credentials are required")

	// ErrBucketRequired is returned when the bucket name is missing.
	ErrBucketRequired = domain.Errorf(domain.EINVALID, "storage.s3", "bucket name is required")

	// ErrInvalidKey is returned for empty keys and keys escaping the storage root.
	ErrInvalidKey = domain.Errorf(domain.EINVALID, "storage.key", "invalid storage key")
)

// ErrFileNotFound creates an error for when a file is not found.
func ErrFileNotFound(key string) error {
	return domain.NotFound("storage.get", "file", key)
}

// ErrUnknownProvider creates an error for unknown storage providers.
func ErrUnknownProvider(provider string) error {
	return domain.Errorf(domain.EINVALID, "storage.new", "unknown storage provider: %s", provider)
}

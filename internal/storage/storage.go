// Package storage provides a domain-agnostic interface for S3-compatible
// object storage, with transient/terminal failure classification so callers
// can decide whether a retry is worthwhile.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service defines the interface for object storage operations.
type Service interface {
	// PutObject uploads an object and returns the file key used for storage.
	// Errors are classified: IsTransient reports whether a retry may succeed.
	PutObject(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)

	// ObjectURL returns the canonical (non-presigned) URL for a stored object.
	ObjectURL(bucket, fileKey string) string

	// GenerateDownloadURL creates a presigned URL for downloading an object.
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)

	// DownloadFile downloads an object. The caller closes the reader.
	DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error)

	// DeleteObject removes an object from storage.
	DeleteObject(ctx context.Context, bucket, fileKey string) error

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error

	// ValidateContentType checks if the content type is allowed.
	ValidateContentType(contentType string) error

	// ValidateFileSize checks if the file size is within limits.
	ValidateFileSize(sizeBytes int64) error
}

// Failure wraps a storage error with a retry classification.
type Failure struct {
	Transient bool
	Err       error
}

func (f *Failure) Error() string {
	if f.Transient {
		return "transient storage failure: " + f.Err.Error()
	}
	return "terminal storage failure: " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsTransient reports whether err is a storage failure worth retrying.
func IsTransient(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Transient
	}
	return false
}

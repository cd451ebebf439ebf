package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrObjectNotFound = errors.New("object not found in storage")

// FileStorage holds the bytes of pending files until a draft is deployed.
type FileStorage interface {
	// PutObject stores body under objectKey. size may be -1 when unknown.
	PutObject(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) error

	// OpenObject streams a stored object back. The caller closes the reader.
	OpenObject(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for previewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

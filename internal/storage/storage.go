// Package storage provides temporary and persistent file storage for
// alignment runs. It defines the Storage port plus local-disk and S3
// implementations.
package storage

import (
	"context"
	"io"
)

// Storage is the file storage boundary. Input tracks and the muxed output
// live in temporary storage during a run; the final output may optionally
// be uploaded to S3 for delivery.
type Storage interface {
	// TempDir returns the directory temporary files are created in.
	TempDir() string

	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// Package artifact stores uploaded verification evidence in private object
// storage.
package artifact

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrUploadFailed = errors.New("failed to upload artifact")
	ErrDeleteFailed = errors.New("failed to delete artifact")
	ErrURLFailed    = errors.New("failed to generate signed url")
)

// Store is opaque object storage keyed by path. Objects are never publicly
// readable; reads go through short-lived signed URLs.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes an object. Deleting a missing object succeeds.
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

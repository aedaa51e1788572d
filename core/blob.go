package core

import (
	"context"
	"io"
	"time"
)

// BlobStorage is any service that can store evidence files in a bucket.
type BlobStorage interface {
	// Put stores the object under key and returns its public URL.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	SignedURL(key string, ttl time.Duration) (string, error)
}

package dummystorage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rumboapp/rumbo/core"
)

type Object struct {
	Data        []byte
	ContentType string
}

// BlobStorage keeps objects in memory for tests.
type BlobStorage struct {
	mu      sync.Mutex
	objects map[string]Object
}

var _ core.BlobStorage = (*BlobStorage)(nil)

func NewBlobStorage() *BlobStorage {
	return &BlobStorage{objects: make(map[string]Object)}
}

func (svc *BlobStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	svc.mu.Lock()
	svc.objects[key] = Object{Data: data, ContentType: contentType}
	svc.mu.Unlock()
	return "https://bucket.test/" + key, nil
}

func (svc *BlobStorage) Delete(ctx context.Context, key string) error {
	svc.mu.Lock()
	delete(svc.objects, key)
	svc.mu.Unlock()
	return nil
}

func (svc *BlobStorage) SignedURL(key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.test/%s?expires=%d", key, time.Now().Add(ttl).Unix()), nil
}

func (svc *BlobStorage) Get(key string) (Object, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	obj, ok := svc.objects[key]
	return obj, ok
}

func (svc *BlobStorage) Len() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.objects)
}

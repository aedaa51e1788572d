package storagesvc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
)

type ossService struct {
	client *oss.Client
	bucket *oss.Bucket
	conf   core.StorageConfig
}

var _ core.BlobStorage = (*ossService)(nil)

func NewOSSService(conf core.StorageConfig) (core.BlobStorage, error) {
	client, err := oss.New(conf.Endpoint, conf.AccessKeyID, conf.AccessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "oss.New")
	}
	bucket, err := client.Bucket(conf.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "client.Bucket")
	}
	return &ossService{
		client: client,
		bucket: bucket,
		conf:   conf,
	}, nil
}

func (svc *ossService) key(key string) string {
	if svc.conf.KeyPrefix == "" {
		return key
	}
	return strings.Trim(svc.conf.KeyPrefix, "/") + "/" + key
}

func (svc *ossService) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	fullKey := svc.key(key)
	if err := svc.bucket.PutObject(fullKey, r, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", errors.Wrap(err, "putting object")
	}
	return svc.publicURL(fullKey), nil
}

func (svc *ossService) Delete(ctx context.Context, key string) error {
	return errors.Wrap(svc.bucket.DeleteObject(svc.key(key), oss.WithContext(ctx)), "deleting object")
}

func (svc *ossService) SignedURL(key string, ttl time.Duration) (string, error) {
	url, err := svc.bucket.SignURL(svc.key(key), oss.HTTPGet, int64(ttl.Seconds()))
	return url, errors.Wrap(err, "signing object url")
}

func (svc *ossService) publicURL(fullKey string) string {
	if base := strings.TrimSpace(svc.conf.PublicBaseURL); base != "" {
		return strings.TrimRight(base, "/") + "/" + fullKey
	}
	end := svc.conf.Endpoint
	end = strings.TrimPrefix(end, "https://")
	end = strings.TrimPrefix(end, "http://")
	return fmt.Sprintf("https://%s.%s/%s", svc.conf.Bucket, end, fullKey)
}

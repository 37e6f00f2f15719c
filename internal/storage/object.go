package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectOptions configures an S3-compatible bucket.
type ObjectOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

type bucket interface {
	put(ctx context.Context, key string, data []byte) error
	get(ctx context.Context, key string) ([]byte, error)
	remove(ctx context.Context, key string) error
}

// ObjectStore keeps objects in a MinIO or S3 bucket.
type ObjectStore struct {
	bucket bucket
	prefix string
}

// NewObjectStore connects to the endpoint and creates the bucket when it does
// not exist yet.
func NewObjectStore(ctx context.Context, opts ObjectOptions) (*ObjectStore, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, errors.New("storage: endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket %s: %w", opts.Bucket, err)
		}
	}
	return newObjectStore(&minioBucket{client: client, name: opts.Bucket}, opts.Prefix), nil
}

func newObjectStore(b bucket, prefix string) *ObjectStore {
	return &ObjectStore{bucket: b, prefix: strings.Trim(prefix, "/")}
}

func (s *ObjectStore) objectKey(key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleanKey, nil
	}
	return s.prefix + "/" + cleanKey, nil
}

// Put uploads data under key and returns the canonical key.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	if err := s.bucket.put(ctx, objectKey, data); err != nil {
		return "", fmt.Errorf("storage: put %s: %w", objectKey, err)
	}
	return objectKey, nil
}

// Get downloads key.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.get(ctx, objectKey)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: get %s: %w", objectKey, err)
	}
	return data, nil
}

// Delete removes key.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if err := s.bucket.remove(ctx, objectKey); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("storage: delete %s: %w", objectKey, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

type minioBucket struct {
	client *minio.Client
	name   string
}

func (b *minioBucket) put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.name, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (b *minioBucket) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (b *minioBucket) remove(ctx context.Context, key string) error {
	return b.client.RemoveObject(ctx, b.name, key, minio.RemoveObjectOptions{})
}

var _ Store = (*ObjectStore)(nil)

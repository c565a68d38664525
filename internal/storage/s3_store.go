package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3-compatible store.
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3Store implements ObjectStore on any S3-compatible service.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates a client for opts.Bucket. No request is made until the
// first operation.
func NewS3Store(opts S3Options) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

// Get downloads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.classify(key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		return nil, s.classify(key, err)
	}
	return &Object{
		Key:         key,
		Data:        data,
		Size:        int64(len(data)),
		ContentType: info.ContentType,
	}, nil
}

// List enumerates objects under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

// Put uploads obj, overwriting any existing object.
func (s *S3Store) Put(ctx context.Context, obj *Object) error {
	contentType := obj.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(obj.Key)
	}
	_, err := s.client.PutObject(ctx, s.bucket, obj.Key, bytes.NewReader(obj.Data), int64(len(obj.Data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", obj.Key, err)
	}
	return nil
}

// DeleteBatch issues multi-object deletes for keys.
func (s *S3Store) DeleteBatch(ctx context.Context, keys []string) []KeyError {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	var failures []KeyError
	for rErr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		failures = append(failures, KeyError{Key: rErr.ObjectName, Err: rErr.Err})
	}
	return failures
}

// Close releases resources.
func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) classify(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrNotFound{Key: key}
	}
	return fmt.Errorf("get %s: %w", key, err)
}

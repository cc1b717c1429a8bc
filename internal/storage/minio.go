package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options are the decrypted connection parameters for one bucket.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinIOGateway struct {
	client *minio.Client
	bucket string
}

func NewMinIOGateway(opts Options) (*MinIOGateway, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOGateway{
		client: client,
		bucket: opts.Bucket,
	}, nil
}

func (m *MinIOGateway) PresignedPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	urlValue, err := m.client.PresignedPutObject(ctx, m.bucket, key, ttl)
	if err != nil {
		logger.Error("minio_presign_put_failed", err, map[string]interface{}{
			"object_key": key,
			"bucket":     m.bucket,
		})
		return "", err
	}
	return urlValue.String(), nil
}

func (m *MinIOGateway) PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	urlValue, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, nil)
	if err != nil {
		logger.Error("minio_presign_get_failed", err, map[string]interface{}{
			"object_key": key,
			"bucket":     m.bucket,
		})
		return "", err
	}
	return urlValue.String(), nil
}

func (m *MinIOGateway) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("minio_delete_failed", err, map[string]interface{}{
			"object_key": key,
			"bucket":     m.bucket,
		})
	} else {
		logger.Info("minio_delete_success", map[string]interface{}{
			"object_key": key,
			"bucket":     m.bucket,
		})
	}
	return err
}

func (m *MinIOGateway) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}
		objects = append(objects, ObjectInfo{Key: object.Key, Size: object.Size})
	}
	return objects, nil
}

func (m *MinIOGateway) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

package minio

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"promowheel/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient, NewUploader))

func registerClient(c *config.Config) (*minio.Client, error) {
	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Error("failed to create MinIO client", zap.Error(err))
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, c.Minio.BucketName)
	if err != nil {
		// uploads are best-effort; a missing object store must not block startup
		zap.L().Warn("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		return client, nil
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
			zap.L().Warn("failed to create bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		}
	}

	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
	return client, nil
}

// Uploader stores an object and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

type uploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
	secure    bool
	endpoint  string
}

func NewUploader(client *minio.Client, c *config.Config) Uploader {
	return &uploader{
		client:    client,
		bucket:    c.Minio.BucketName,
		publicURL: strings.TrimRight(c.Minio.PublicURL, "/"),
		secure:    c.Minio.Secure,
		endpoint:  c.Minio.Endpoint,
	}
}

func (u *uploader) Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return u.objectURL(objectName), nil
}

func (u *uploader) objectURL(objectName string) string {
	if u.publicURL != "" {
		return fmt.Sprintf("%s/%s", u.publicURL, objectName)
	}
	scheme := "http"
	if u.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, u.endpoint, u.bucket, objectName)
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioConfig holds S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps images in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	cfg    MinioConfig
	logger *zap.Logger
}

// NewMinioStore connects to object storage and makes sure the bucket
// exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig, logger *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("Created image bucket", zap.String("bucket", cfg.Bucket))
	}

	return &MinioStore{
		client: client,
		cfg:    cfg,
		logger: logger.Named("MinioStore"),
	}, nil
}

func (s *MinioStore) SaveImage(ctx context.Context, ownerID, filename string, data []byte, contentType string) (string, error) {
	objectName := path.Join(ownerID, filename)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("Failed to upload image",
			zap.String("object", objectName), zap.Error(err))
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, objectName), nil
}

package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"compliance_checker/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig holds connection settings, filled from MINIO_* variables.
type MinIOConfig struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"uploads"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	Region    string `env:"REGION"`
}

// MinIOStore writes uploads to an S3 compatible bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	region string
	logger *logger.Logger
}

func NewMinIOStore(cfg MinIOConfig, lgr *logger.Logger) (*MinIOStore, error) {
	if lgr == nil {
		lgr = logger.L()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: lgr.Named("upload"),
	}, nil
}

func (s *MinIOStore) Name() string { return "minio" }

// EnsureBucket creates the bucket when it does not exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	}

	return nil
}

// Save returns "bucket/object".
func (s *MinIOStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return "", err
	}

	object := ObjectName(name)
	info, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Info("upload saved",
		zap.String("bucket", info.Bucket),
		zap.String("key", info.Key),
		zap.Int64("size", info.Size))

	return s.bucket + "/" + object, nil
}

func (s *MinIOStore) Remove(ctx context.Context, location string) error {
	bucket, object, ok := strings.Cut(location, "/")
	if !ok || bucket != s.bucket {
		return fmt.Errorf("location %q is not in bucket %s", location, s.bucket)
	}

	if err := s.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectPrefix namespaces result artifacts inside the bucket so the
// janitor's listing sweep never touches unrelated objects.
const objectPrefix = "processed/"

// S3Config holds the connection settings for the object-storage variant.
type S3Config struct {
	Endpoint      string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PresignExpiry time.Duration
}

// S3 writes artifacts to an S3-compatible object store under the processed/
// prefix. Retrieval links are presigned GET URLs with their own expiry,
// independent of the record TTL; artifacts are never publicly readable.
type S3 struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
	logger        *slog.Logger
}

// NewS3 creates an S3 backend. The client is long-lived and shared across
// all workers.
func NewS3(cfg *S3Config, logger *slog.Logger) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 client: %w", err)
	}

	presignExpiry := cfg.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}

	return &S3{
		client:        client,
		bucket:        cfg.Bucket,
		presignExpiry: presignExpiry,
		logger:        logger,
	}, nil
}

// Variant implements Backend.
func (s *S3) Variant() string {
	return VariantS3
}

// Store implements Backend. A single upload attempt; any failure is
// reported to the caller, which fails the job.
func (s *S3) Store(ctx context.Context, filename string, data []byte, contentType string) error {
	key := objectPrefix + filename

	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("storage: put object %s: %w", key, err)
	}

	s.logger.Debug("Artifact uploaded",
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)

	return nil
}

// Link implements Backend and returns a time-limited presigned URL.
func (s *S3) Link(ctx context.Context, filename string) (string, error) {
	key := objectPrefix + filename

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}

	return presigned.String(), nil
}

// Sweep implements Backend: lists the processed/ namespace and deletes
// objects whose last-modified time is older than the retention window.
func (s *S3) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: objectPrefix}) {
		if object.Err != nil {
			return removed, fmt.Errorf("storage: list objects: %w", object.Err)
		}

		if object.LastModified.Before(cutoff) {
			if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
				s.logger.Warn("Failed to remove expired object",
					slog.String("key", object.Key),
					slog.String("error", err.Error()),
				)
				continue
			}
			removed++
		}
	}

	return removed, nil
}

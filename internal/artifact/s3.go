package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/voxlatelabs/voxlate-core/internal/config"
)

// S3Store keeps artifacts in an S3-compatible bucket. Objects are keyed
// by bare id; the content type carries the format. Retention is owned
// by bucket lifecycle rules, so Prune is a no-op here.
type S3Store struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	log    *slog.Logger
	clock  func() time.Time
}

// NewS3Store connects to the configured bucket and verifies it exists.
func NewS3Store(ctx context.Context, cfg config.ArtifactsConfig, log *slog.Logger) (*S3Store, error) {
	client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.S3.Bucket)
	}

	expiry := time.Duration(cfg.S3.URLExpiryMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Store{client: client, bucket: cfg.S3.Bucket, expiry: expiry, log: log, clock: time.Now}, nil
}

// Put uploads the payload under a fresh id.
func (s *S3Store) Put(ctx context.Context, data []byte, format string) (Meta, error) {
	meta := Meta{
		ID:          newArtifactID(),
		Format:      format,
		ContentType: contentTypeFor(format),
		Size:        int64(len(data)),
		CreatedAt:   s.clock().UTC(),
	}
	_, err := s.client.PutObject(ctx, s.bucket, meta.ID, bytes.NewReader(data), meta.Size,
		minio.PutObjectOptions{ContentType: meta.ContentType})
	if err != nil {
		return Meta{}, fmt.Errorf("upload artifact: %w", err)
	}
	s.log.Debug("artifact uploaded",
		slog.String("artifact_id", meta.ID),
		slog.String("bucket", s.bucket),
		slog.Int64("size_bytes", meta.Size))
	return meta, nil
}

// Open streams the object. The first Stat surfaces missing keys.
func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, Meta, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, Meta{}, fmt.Errorf("get artifact: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, Meta{}, ErrNotFound
		}
		return nil, Meta{}, fmt.Errorf("stat artifact: %w", err)
	}
	return obj, metaFromInfo(id, info), nil
}

// URL presigns a GET so clients fetch straight from the bucket.
func (s *S3Store) URL(ctx context.Context, id string) (string, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, id, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign artifact: %w", err)
	}
	return u.String(), nil
}

// Prune defers retention to bucket lifecycle rules.
func (s *S3Store) Prune(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *S3Store) Close() error {
	return nil
}

func metaFromInfo(id string, info minio.ObjectInfo) Meta {
	format := "mp3"
	if info.ContentType == "audio/wav" {
		format = "wav"
	}
	return Meta{
		ID:          id,
		Format:      format,
		ContentType: info.ContentType,
		Size:        info.Size,
		CreatedAt:   info.LastModified.UTC(),
	}
}

package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig configures the S3-compatible backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string // empty asks the server for the bucket location
}

// MinIO keeps media in an S3-compatible bucket keyed by content hash.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the bucket, creating it when missing.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
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
	}

	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

// Pin stores f under its content hash. Re-uploading identical bytes yields
// the same CID.
func (m *MinIO) Pin(ctx context.Context, f File) (string, error) {
	if f.Size() == 0 {
		return "", ErrEmptyFile
	}
	cid := ContentID(f.Data)

	_, err := m.client.PutObject(ctx, m.bucket, cid, bytes.NewReader(f.Data), int64(f.Size()),
		minio.PutObjectOptions{
			ContentType:  f.DetectType(),
			UserMetadata: map[string]string{"filename": f.Name},
		})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}
	return cid, nil
}

// SignedURL presigns a GET for the object stored under cid.
func (m *MinIO) SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error) {
	if !validCID(cid) {
		return "", ErrUnknownCID
	}
	if _, err := m.client.StatObject(ctx, m.bucket, cid, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("%s: %w", cid, ErrUnknownCID)
		}
		return "", fmt.Errorf("failed to stat object: %w", err)
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, cid, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return u.String(), nil
}

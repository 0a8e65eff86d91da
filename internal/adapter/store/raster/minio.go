package raster

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"go.ngs.io/rastercast/internal/domain"
)

// Artifact buckets. Previews are small color-mapped images served to map
// clients; exports are georeferenced files served for download.
const (
	BucketPreviews = "radar-pngs"
	BucketExports  = "radar-exports"
)

// MinIOConfig holds object storage connection settings.
type MinIOConfig struct {
	Endpoint  string // e.g. "localhost:9000"
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectStore uploads raster artifacts and resolves their public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error)
	PublicURL(bucket, object string) string
}

// MinIOStore implements ObjectStore on a MinIO (or S3-compatible) endpoint.
type MinIOStore struct {
	client *minio.Client
	scheme string
	host   string
}

// NewMinIOStore connects to the endpoint and ensures both artifact buckets
// exist.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create minio client: %v", domain.ErrPersistenceFailure, err)
	}

	for _, bucket := range []string{BucketPreviews, BucketExports} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("%w: check bucket %s: %v", domain.ErrPersistenceFailure, bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("%w: create bucket %s: %v", domain.ErrPersistenceFailure, bucket, err)
			}
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinIOStore{client: client, scheme: scheme, host: cfg.Endpoint}, nil
}

// Upload stores an artifact. Re-uploading the same object name is a safe
// overwrite; artifact content is deterministic given the key.
func (s *MinIOStore) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("%w: upload %s/%s: %v", domain.ErrPersistenceFailure, bucket, object, err)
	}
	return s.PublicURL(bucket, object), nil
}

// PublicURL returns the deterministic download URL of an object.
func (s *MinIOStore) PublicURL(bucket, object string) string {
	return fmt.Sprintf("%s://%s/%s/%s", s.scheme, s.host, bucket, object)
}

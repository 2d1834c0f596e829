// Package covers stores page cover images in S3-compatible object storage.
package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"inkwell/api/internal/util"
)

// maxCoverBytes caps uploads at 5 MiB.
const maxCoverBytes = 5 << 20

var (
	// ErrUnsupportedImage indicates the content type is not an allowed image format
	ErrUnsupportedImage = errors.New("unsupported cover image type")

	// ErrTooLarge indicates the upload exceeds the size cap
	ErrTooLarge = errors.New("cover image too large")
)

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base URL for stored objects,
	// e.g. http://localhost:9000/inkwell-covers
	PublicURL string
}

// Service uploads cover images and hands back their public URLs.
type Service struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewService connects to object storage and ensures the covers bucket exists.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Service{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Upload stores a cover image for a page and returns its public URL. The
// object key embeds the page ID so re-uploads for the same page pile up under
// one prefix and stay easy to clean.
func (s *Service) Upload(ctx context.Context, pageID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", ErrUnsupportedImage
	}
	if size > maxCoverBytes {
		return "", ErrTooLarge
	}

	key := fmt.Sprintf("%s/%s%s", pageID, util.NewID("cv"), ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, io.LimitReader(body, maxCoverBytes), size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("store cover: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

// RemoveAll deletes every stored cover for a page.
func (s *Service) RemoveAll(ctx context.Context, pageID string) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    pageID + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list covers: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove cover %s: %w", obj.Key, err)
		}
	}
	return nil
}

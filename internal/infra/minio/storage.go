package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

// Storage resolves bare keys against the input bucket for downloads and the output bucket
// for uploads. s3://bucket/key addresses any bucket explicitly.
type Storage struct {
	client       *miniogo.Client
	inputBucket  string
	outputBucket string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	InputBucket  string
	OutputBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:       client,
		inputBucket:  cfg.InputBucket,
		outputBucket: cfg.OutputBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.inputBucket, s.outputBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) Download(ctx context.Context, key string, destPath string) error {
	bucket, object, err := ResolveKey(key, s.inputBucket)
	if err != nil {
		return err
	}
	if err := s.client.FGetObject(ctx, bucket, object, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s/%s: %w", bucket, object, translate(err))
	}
	return nil
}

func (s *Storage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	bucket, object, err := ResolveKey(key, s.outputBucket)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, bucket, object, reader, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, object, err)
	}
	return nil
}

func (s *Storage) Head(ctx context.Context, key string) (int64, error) {
	bucket, object, err := ResolveKey(key, s.outputBucket)
	if err != nil {
		return 0, err
	}
	info, err := s.client.StatObject(ctx, bucket, object, miniogo.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("stat %s/%s: %w", bucket, object, translate(err))
	}
	return info.Size, nil
}

// ResolveKey splits an s3://bucket/key URL, or pairs a bare key with defaultBucket.
func ResolveKey(key, defaultBucket string) (bucket, object string, err error) {
	if !strings.HasPrefix(key, "s3://") {
		object = strings.TrimPrefix(key, "/")
		if object == "" {
			return "", "", errors.New("s3: empty object key")
		}
		return defaultBucket, object, nil
	}

	u, err := url.Parse(strings.TrimSpace(key))
	if err != nil {
		return "", "", fmt.Errorf("s3: parse key: %w", err)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", "", fmt.Errorf("s3: key %q missing bucket name", key)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if object == "" {
		return "", "", fmt.Errorf("s3: key %q missing object name", key)
	}
	return u.Host, object, nil
}

func translate(err error) error {
	switch miniogo.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", entity.ErrObjectNotFound, err)
	}
	return err
}

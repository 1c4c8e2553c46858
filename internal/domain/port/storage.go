package port

import (
	"context"
	"io"
)

type ObjectStore interface {
	Download(ctx context.Context, key string, destPath string) error
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Head returns the stored size of key, or entity.ErrObjectNotFound.
	Head(ctx context.Context, key string) (int64, error)
}

package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKey(t *testing.T) {
	tests := []struct {
		key, bucket, object string
	}{
		{"drives/2024/a.bag", "recordings", "drives/2024/a.bag"},
		{"/drives/a.bag", "recordings", "drives/a.bag"},
		{"s3://raw-data/drives/a.bag", "raw-data", "drives/a.bag"},
		{"s3://out/scenes/s1/videos/front.mp4", "out", "scenes/s1/videos/front.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			bucket, object, err := ResolveKey(tt.key, "recordings")
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestResolveKeyInvalid(t *testing.T) {
	for _, key := range []string{"", "s3://", "s3://bucket-only", "s3:///no-bucket"} {
		t.Run(key, func(t *testing.T) {
			_, _, err := ResolveKey(key, "recordings")
			assert.Error(t, err)
		})
	}
}

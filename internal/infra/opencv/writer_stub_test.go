//go:build !gocv

package opencv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEncodersDisabledWithoutTag(t *testing.T) {
	assert.Empty(t, Encoders(zap.NewNop()))
}

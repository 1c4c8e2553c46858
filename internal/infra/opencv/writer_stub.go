//go:build !gocv

package opencv

import (
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

// Encoders is empty unless built with -tags gocv.
func Encoders(_ *zap.Logger) []port.VideoEncoder {
	return nil
}

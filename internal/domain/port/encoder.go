package port

import (
	"context"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

// FrameSet is an ordered, materialised sequence of JPEG frames for one camera.
// Frames[i].Path matches Pattern with index i.
type FrameSet struct {
	Camera  string
	Dir     string
	Pattern string
	Frames  []entity.DecodedFrame
}

// VideoEncoder is one option of the encoder fallback chain.
type VideoEncoder interface {
	Name() string
	Codec() string
	// Container is the file extension the encoder writes, without the dot.
	Container() string
	Encode(ctx context.Context, frames FrameSet, outputPath string, fps int) error
}

type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

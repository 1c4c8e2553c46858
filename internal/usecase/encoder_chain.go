package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"github.com/roadscope/scene-processing-service/internal/infra/metrics"
	"go.uber.org/zap"
)

type EncodeResult struct {
	Path     string
	Codec    string
	Strategy string
	Size     int64
	Duration float64
}

// EncoderChain tries its encoders in order and stops at the first one that leaves a
// non-empty file behind.
type EncoderChain struct {
	encoders []port.VideoEncoder
	prober   port.DurationProber
	logger   *zap.Logger
}

// NewEncoderChain drops nil encoders. prober may be nil.
func NewEncoderChain(encoders []port.VideoEncoder, prober port.DurationProber, logger *zap.Logger) *EncoderChain {
	chain := make([]port.VideoEncoder, 0, len(encoders))
	for _, e := range encoders {
		if e != nil {
			chain = append(chain, e)
		}
	}
	return &EncoderChain{encoders: chain, prober: prober, logger: logger}
}

func (c *EncoderChain) Strategies() []string {
	names := make([]string, len(c.encoders))
	for i, e := range c.encoders {
		names[i] = e.Name()
	}
	return names
}

// Encode writes the video next to targetPath, using the extension of whichever encoder wins.
// When every encoder fails the causes are joined under entity.ErrChainExhausted.
func (c *EncoderChain) Encode(ctx context.Context, frames port.FrameSet, targetPath string, fps int) (*EncodeResult, error) {
	if len(frames.Frames) == 0 {
		return nil, fmt.Errorf("%w: camera %s has no frames", entity.ErrChainExhausted, frames.Camera)
	}
	log := c.logger.With(zap.String("camera", frames.Camera), zap.Int("frames", len(frames.Frames)))

	causes := []error{entity.ErrChainExhausted}
	for _, enc := range c.encoders {
		if err := ctx.Err(); err != nil {
			causes = append(causes, err)
			break
		}

		out := withExtension(targetPath, enc.Container())
		size, err := c.attempt(ctx, enc, frames, out, fps)
		if err != nil {
			metrics.EncoderAttemptsTotal.WithLabelValues(enc.Name(), "failure").Inc()
			log.Warn("encoder failed, trying next", zap.String("strategy", enc.Name()), zap.Error(err))
			causes = append(causes, fmt.Errorf("%s: %w", enc.Name(), err))
			continue
		}
		metrics.EncoderAttemptsTotal.WithLabelValues(enc.Name(), "success").Inc()

		res := &EncodeResult{Path: out, Codec: enc.Codec(), Strategy: enc.Name(), Size: size}
		if c.prober != nil {
			if d, err := c.prober.ProbeDuration(ctx, out); err != nil {
				log.Debug("could not probe video duration", zap.Error(err))
			} else {
				res.Duration = d
			}
		}
		log.Info("camera encoded",
			zap.String("strategy", res.Strategy),
			zap.String("codec", res.Codec),
			zap.Int64("bytes", res.Size),
		)
		return res, nil
	}

	return nil, errors.Join(causes...)
}

func (c *EncoderChain) attempt(ctx context.Context, enc port.VideoEncoder, frames port.FrameSet, out string, fps int) (int64, error) {
	if err := enc.Encode(ctx, frames, out, fps); err != nil {
		_ = os.Remove(out)
		return 0, err
	}
	info, err := os.Stat(out)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", entity.ErrEncoderEmptyOutput, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(out)
		return 0, entity.ErrEncoderEmptyOutput
	}
	return info.Size(), nil
}

func withExtension(path, ext string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// Package mjpeg writes Motion-JPEG AVI files without any native dependency.
package mjpeg

import (
	"context"
	"fmt"
	"os"

	"github.com/icza/mjpeg"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

// Writer stores the JPEG frames as they are, so it only fails on I/O errors.
type Writer struct {
	logger *zap.Logger
}

func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

func (w *Writer) Name() string      { return "mjpeg" }
func (w *Writer) Codec() string     { return "mjpeg" }
func (w *Writer) Container() string { return "avi" }

func (w *Writer) Encode(ctx context.Context, frames port.FrameSet, outputPath string, fps int) error {
	if len(frames.Frames) == 0 {
		return fmt.Errorf("no frames for camera %s", frames.Camera)
	}
	first := frames.Frames[0]
	aw, err := mjpeg.New(outputPath, int32(first.Width), int32(first.Height), int32(fps))
	if err != nil {
		return fmt.Errorf("create avi: %w", err)
	}

	for _, f := range frames.Frames {
		if err := ctx.Err(); err != nil {
			_ = aw.Close()
			return err
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			_ = aw.Close()
			return fmt.Errorf("read frame %d: %w", f.Sequence, err)
		}
		if err := aw.AddFrame(data); err != nil {
			_ = aw.Close()
			return fmt.Errorf("add frame %d: %w", f.Sequence, err)
		}
	}

	if err := aw.Close(); err != nil {
		return fmt.Errorf("finalize avi: %w", err)
	}
	w.logger.Debug("mjpeg avi written", zap.String("camera", frames.Camera), zap.Int("frames", len(frames.Frames)))
	return nil
}

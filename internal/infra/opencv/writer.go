//go:build gocv

package opencv

import (
	"context"
	"fmt"
	"image"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Writer encodes frames in process with an OpenCV VideoWriter for one FourCC.
type Writer struct {
	fourcc    string
	container string
	logger    *zap.Logger
}

func (w *Writer) Name() string      { return "opencv-" + w.fourcc }
func (w *Writer) Codec() string     { return w.fourcc }
func (w *Writer) Container() string { return w.container }

func (w *Writer) Encode(ctx context.Context, frames port.FrameSet, outputPath string, fps int) error {
	if len(frames.Frames) == 0 {
		return fmt.Errorf("no frames for camera %s", frames.Camera)
	}
	first := frames.Frames[0]
	size := image.Pt(first.Width&^1, first.Height&^1)
	if size.X == 0 || size.Y == 0 {
		return fmt.Errorf("invalid frame size %dx%d", first.Width, first.Height)
	}

	vw, err := gocv.VideoWriterFile(outputPath, w.fourcc, float64(fps), size.X, size.Y, true)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", entity.ErrEncoderUnavailable, w.fourcc, err)
	}
	defer vw.Close()
	if !vw.IsOpened() {
		return fmt.Errorf("%w: %s writer did not open", entity.ErrEncoderUnavailable, w.fourcc)
	}

	resized := gocv.NewMat()
	defer resized.Close()

	for _, f := range frames.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		img := gocv.IMRead(f.Path, gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			w.logger.Debug("skipping unreadable frame", zap.String("path", f.Path))
			continue
		}
		frame := img
		if img.Cols() != size.X || img.Rows() != size.Y {
			gocv.Resize(img, &resized, size, 0, 0, gocv.InterpolationLinear)
			frame = resized
		}
		err := vw.Write(frame)
		img.Close()
		if err != nil {
			return fmt.Errorf("write frame %d: %w", f.Sequence, err)
		}
	}
	return nil
}

// Encoders returns one strategy per codec in fallback order.
func Encoders(logger *zap.Logger) []port.VideoEncoder {
	return []port.VideoEncoder{
		&Writer{fourcc: "avc1", container: "mp4", logger: logger},
		&Writer{fourcc: "mp4v", container: "mp4", logger: logger},
		&Writer{fourcc: "XVID", container: "avi", logger: logger},
		&Writer{fourcc: "MJPG", container: "avi", logger: logger},
	}
}

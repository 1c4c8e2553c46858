// Package gifanim writes frame sequences as looping animated GIFs.
package gifanim

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"os"

	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

// Writer re-quantises every frame to the Plan 9 palette. Frames are drawn onto the first
// frame's bounds, so a camera that changes resolution mid-recording still encodes.
// The whole animation is held in memory until it is written.
type Writer struct {
	logger *zap.Logger
}

func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

func (w *Writer) Name() string      { return "gif" }
func (w *Writer) Codec() string     { return "gif" }
func (w *Writer) Container() string { return "gif" }

func (w *Writer) Encode(ctx context.Context, frames port.FrameSet, outputPath string, fps int) error {
	if len(frames.Frames) == 0 {
		return fmt.Errorf("no frames for camera %s", frames.Camera)
	}
	delay := frameDelay(fps)

	anim := &gif.GIF{}
	var bounds image.Rectangle
	for i, f := range frames.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := readJPEG(f.Path)
		if err != nil {
			return fmt.Errorf("frame %d: %w", f.Sequence, err)
		}
		if i == 0 {
			bounds = image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())
		}
		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, img, img.Bounds().Min)
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	if err := gif.EncodeAll(out, anim); err != nil {
		out.Close()
		return fmt.Errorf("encode gif: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("finalize gif: %w", err)
	}
	w.logger.Debug("gif written", zap.String("camera", frames.Camera), zap.Int("frames", len(frames.Frames)))
	return nil
}

// frameDelay converts fps to the GIF delay unit of 1/100 s, never below one unit.
func frameDelay(fps int) int {
	if fps <= 0 {
		fps = 10
	}
	if d := 100 / fps; d > 0 {
		return d
	}
	return 1
}

func readJPEG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

const evenDimensions = "scale=trunc(iw/2)*2:trunc(ih/2)*2"

// Encoder shells out to ffmpeg for H.264 in an MP4 container.
type Encoder struct {
	binary  string
	probe   string
	timeout time.Duration
	logger  *zap.Logger
}

type Config struct {
	Binary      string
	ProbeBinary string
	Timeout     time.Duration
}

func NewEncoder(cfg Config, logger *zap.Logger) *Encoder {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.ProbeBinary == "" {
		cfg.ProbeBinary = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Encoder{binary: cfg.Binary, probe: cfg.ProbeBinary, timeout: cfg.Timeout, logger: logger}
}

func (e *Encoder) Name() string      { return "ffmpeg" }
func (e *Encoder) Codec() string     { return "h264" }
func (e *Encoder) Container() string { return "mp4" }

func (e *Encoder) Encode(ctx context.Context, frames port.FrameSet, outputPath string, fps int) error {
	bin, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", entity.ErrEncoderUnavailable, e.binary, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, Args(frames, outputPath, fps)...)
	output, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", entity.ErrEncoderTimeout, e.timeout)
	}
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, tail(output, 512))
	}

	e.logger.Debug("ffmpeg finished", zap.String("camera", frames.Camera), zap.String("output", outputPath))
	return nil
}

// Args builds the ffmpeg command line for a materialised frame set.
func Args(frames port.FrameSet, outputPath string, fps int) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-framerate", strconv.Itoa(fps),
		"-i", filepath.Join(frames.Dir, frames.Pattern),
		"-vf", evenDimensions,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-profile:v", "baseline",
		"-movflags", "+faststart",
		outputPath,
	}
}

func (e *Encoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

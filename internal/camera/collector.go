package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"github.com/roadscope/scene-processing-service/internal/infra/metrics"
	"go.uber.org/zap"
)

const FramePattern = "frame_%06d.jpg"

// CameraFrames holds the recovered frames of one camera. Frame bytes stay on disk.
type CameraFrames struct {
	Topic  entity.CameraTopic
	Dir    string
	Frames []entity.DecodedFrame
	Misses int
}

// Collector recovers frames from compressed image messages and writes each one to disk as
// soon as it is recovered.
type Collector struct {
	quality int
	logger  *zap.Logger
}

// NewCollector takes the JPEG quality used when a recovered frame is not JPEG already.
func NewCollector(quality int, logger *zap.Logger) *Collector {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Collector{quality: quality, logger: logger}
}

// Collect drains src, keeping messages of the given topics. The result follows the order of
// topics and includes cameras that yielded no frame.
func (c *Collector) Collect(ctx context.Context, src port.MessageSource, topics []entity.CameraTopic, dir string) ([]*CameraFrames, error) {
	out := make([]*CameraFrames, 0, len(topics))
	byTopic := make(map[string]*CameraFrames, len(topics))
	for _, t := range topics {
		cf := &CameraFrames{Topic: t, Dir: filepath.Join(dir, t.Name)}
		if err := os.MkdirAll(cf.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create frames dir: %w", err)
		}
		out = append(out, cf)
		byTopic[t.Topic] = cf
	}

	for n := 0; ; n++ {
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		msg, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.logger.Warn("camera pass ended early", zap.Error(err))
			break
		}
		cf, ok := byTopic[msg.Topic]
		if !ok {
			continue
		}

		frame, err := c.recoverFrame(cf, msg)
		if err != nil {
			if !errors.Is(err, entity.ErrFrameRecoveryMiss) {
				return nil, err
			}
			cf.Misses++
			metrics.FrameMissesTotal.Inc()
			c.logger.Debug("dropping frame", zap.String("topic", msg.Topic), zap.Error(err))
			continue
		}
		cf.Frames = append(cf.Frames, frame)
		metrics.FramesRecoveredTotal.Inc()
	}

	for _, cf := range out {
		c.logger.Info("camera frames recovered",
			zap.String("camera", cf.Topic.Name),
			zap.String("topic", cf.Topic.Topic),
			zap.Int("frames", len(cf.Frames)),
			zap.Int("misses", cf.Misses),
		)
	}
	return out, nil
}

func (c *Collector) recoverFrame(cf *CameraFrames, msg *entity.RawMessage) (entity.DecodedFrame, error) {
	img, ok := Recover(msg.Data)
	if !ok {
		return entity.DecodedFrame{}, entity.ErrFrameRecoveryMiss
	}
	decoded, format, err := Decode(img)
	if err != nil {
		return entity.DecodedFrame{}, err
	}

	if format != "jpeg" {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: c.quality}); err != nil {
			return entity.DecodedFrame{}, fmt.Errorf("%w: re-encode %s: %v", entity.ErrFrameRecoveryMiss, format, err)
		}
		img = buf.Bytes()
	}

	path := filepath.Join(cf.Dir, fmt.Sprintf("raw_%08d.jpg", len(cf.Frames)))
	if err := os.WriteFile(path, img, 0644); err != nil {
		return entity.DecodedFrame{}, fmt.Errorf("write frame: %w", err)
	}

	b := decoded.Bounds()
	return entity.DecodedFrame{
		Camera:    cf.Topic.Name,
		Timestamp: float64(msg.Timestamp.UnixNano()) / 1e9,
		Path:      path,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// Sequence orders the frames by timestamp, renames them into FramePattern order and assigns
// sequence indexes. It must be called once, right before encoding.
func (cf *CameraFrames) Sequence() (port.FrameSet, error) {
	sort.SliceStable(cf.Frames, func(i, j int) bool {
		return cf.Frames[i].Timestamp < cf.Frames[j].Timestamp
	})
	for i := range cf.Frames {
		target := filepath.Join(cf.Dir, fmt.Sprintf(FramePattern, i))
		if err := os.Rename(cf.Frames[i].Path, target); err != nil {
			return port.FrameSet{}, fmt.Errorf("sequence frame %d: %w", i, err)
		}
		cf.Frames[i].Path = target
		cf.Frames[i].Sequence = i
	}
	return port.FrameSet{
		Camera:  cf.Topic.Name,
		Dir:     cf.Dir,
		Pattern: FramePattern,
		Frames:  cf.Frames,
	}, nil
}

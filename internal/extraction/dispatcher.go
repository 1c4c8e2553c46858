package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"github.com/roadscope/scene-processing-service/internal/infra/metrics"
	"github.com/roadscope/scene-processing-service/internal/infra/rosmsg"
	"go.uber.org/zap"
)

const ctxCheckEvery = 1024

type schemaEntry struct {
	schema *rosmsg.Schema
	err    error
}

// Dispatcher classifies each message by its declared type and routes it to the extractor of
// its modality. It keeps one parsed schema per channel and nothing else between messages.
type Dispatcher struct {
	classifier *Classifier
	logger     *zap.Logger
}

func NewDispatcher(classifier *Classifier, logger *zap.Logger) *Dispatcher {
	if classifier == nil {
		classifier = defaultClassifier
	}
	return &Dispatcher{classifier: classifier, logger: logger}
}

// Extract reads src to the end exactly once. Per-message failures are counted and skipped;
// a read error part way through keeps what was extracted and flags the result as truncated.
func (d *Dispatcher) Extract(ctx context.Context, src port.MessageSource, sceneID string) (*entity.ExtractionResult, error) {
	res := &entity.ExtractionResult{
		SceneID:   sceneID,
		Camera:    []entity.CameraFrameMeta{},
		Lidar:     []entity.LidarFrameMeta{},
		Telemetry: []entity.TelemetryPoint{},
		Vehicle:   []entity.VehicleStateSample{},
		Stats:     entity.ExtractionStats{ByModality: make(map[entity.Modality]int)},
	}
	schemas := make(map[uint32]schemaEntry)

	for {
		if res.Stats.Messages%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		msg, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.logger.Warn("log ended early, keeping partial extraction",
				zap.Int("messages", res.Stats.Messages),
				zap.Error(err),
			)
			res.Stats.Truncated = true
			break
		}
		res.Stats.Messages++

		modality := d.classifier.Classify(msg.Type)
		res.Stats.ByModality[modality]++
		metrics.MessagesTotal.WithLabelValues(string(modality)).Inc()
		if modality == entity.ModalityUnknown {
			res.Stats.Unknown++
			continue
		}

		if err := d.dispatch(res, modality, msg, schemas); err != nil {
			res.Stats.DecodeErrors++
			metrics.DecodeErrorsTotal.WithLabelValues(string(modality)).Inc()
			d.logger.Debug("skipping message",
				zap.String("topic", msg.Topic),
				zap.String("type", msg.Type),
				zap.Error(err),
			)
			continue
		}
		res.Stats.Records++
	}

	res.FrameCount = len(res.Camera)
	res.TelemetryPointCount = len(res.Telemetry)
	return res, nil
}

func (d *Dispatcher) dispatch(res *entity.ExtractionResult, modality entity.Modality, msg *entity.RawMessage, schemas map[uint32]schemaEntry) error {
	if modality == entity.ModalityCamera && IsCompressedImage(msg.Type) {
		res.Camera = append(res.Camera, compressedFrameMeta(msg))
		return nil
	}

	fields, err := decode(msg, schemas)
	if err != nil {
		return err
	}

	switch modality {
	case entity.ModalityCamera:
		rec, err := extractImage(msg, fields)
		if err != nil {
			return err
		}
		res.Camera = append(res.Camera, rec)
	case entity.ModalityLidar:
		rec, err := extractLidar(msg, fields)
		if err != nil {
			return err
		}
		res.Lidar = append(res.Lidar, rec)
	case entity.ModalityTelemetry:
		rec, err := extractTelemetry(msg, fields)
		if err != nil {
			return err
		}
		res.Telemetry = append(res.Telemetry, rec)
	case entity.ModalityVehicle:
		rec, err := extractVehicle(msg, fields)
		if err != nil {
			return err
		}
		res.Vehicle = append(res.Vehicle, rec)
	}
	return nil
}

func decode(msg *entity.RawMessage, schemas map[uint32]schemaEntry) (map[string]any, error) {
	entry, ok := schemas[msg.ChannelID]
	if !ok {
		s, err := rosmsg.Parse(msg.Type, msg.Definition)
		entry = schemaEntry{schema: s, err: err}
		schemas[msg.ChannelID] = entry
	}
	if entry.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrPerMessageDecode, msg.Type, entry.err)
	}
	fields, err := entry.schema.Decode(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrPerMessageDecode, msg.Topic, err)
	}
	return fields, nil
}

package extraction

import (
	"fmt"
	"strings"

	"github.com/roadscope/scene-processing-service/internal/camera"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/infra/rosmsg"
)

var (
	speedPaths    = []string{"speed", "vehicle_speed", "velocity", "drive.speed", "twist.linear.x", "twist.twist.linear.x"}
	steeringPaths = []string{"steering_angle", "steering_wheel_angle", "steering", "drive.steering_angle"}
)

// IsCompressedImage reports whether a camera type carries an encoded image that must not go
// through the structured decoder.
func IsCompressedImage(declaredType string) bool {
	return strings.Contains(strings.ToLower(declaredType), "compressedimage")
}

func logSeconds(msg *entity.RawMessage) float64 {
	return float64(msg.Timestamp.UnixNano()) / 1e9
}

func stampOf(msg *entity.RawMessage, fields map[string]any) float64 {
	if ts, ok := rosmsg.HeaderStamp(fields); ok {
		return ts
	}
	return logSeconds(msg)
}

func frameID(fields map[string]any) string {
	id, _ := rosmsg.String(fields, "header.frame_id")
	return id
}

// compressedFrameMeta only looks at the raw payload.
func compressedFrameMeta(msg *entity.RawMessage) entity.CameraFrameMeta {
	return entity.CameraFrameMeta{
		Topic:      msg.Topic,
		Timestamp:  logSeconds(msg),
		Format:     camera.SniffFormat(msg.Data),
		ByteLength: len(msg.Data),
		Compressed: true,
	}
}

func extractImage(msg *entity.RawMessage, fields map[string]any) (entity.CameraFrameMeta, error) {
	width, okW := rosmsg.Float(fields, "width")
	height, okH := rosmsg.Float(fields, "height")
	if !okW || !okH {
		return entity.CameraFrameMeta{}, fmt.Errorf("%w: %s: image without width/height", entity.ErrPerMessageDecode, msg.Topic)
	}
	encoding, _ := rosmsg.String(fields, "encoding")
	data, _ := fields["data"].([]byte)
	return entity.CameraFrameMeta{
		Topic:      msg.Topic,
		Timestamp:  stampOf(msg, fields),
		Format:     encoding,
		ByteLength: len(data),
		Width:      int(width),
		Height:     int(height),
		FrameID:    frameID(fields),
	}, nil
}

func extractLidar(msg *entity.RawMessage, fields map[string]any) (entity.LidarFrameMeta, error) {
	meta := entity.LidarFrameMeta{
		Topic:       msg.Topic,
		Timestamp:   stampOf(msg, fields),
		MessageType: msg.Type,
		FrameID:     frameID(fields),
		ByteLength:  len(msg.Data),
	}

	width, okW := rosmsg.Float(fields, "width")
	height, okH := rosmsg.Float(fields, "height")
	switch {
	case okW && okH:
		meta.PointCount = int(width * height)
		if items, ok := fields["fields"].([]any); ok {
			for _, item := range items {
				if f, ok := item.(map[string]any); ok {
					if name, ok := rosmsg.String(f, "name"); ok {
						meta.Fields = append(meta.Fields, name)
					}
				}
			}
		}
	default:
		ranges, ok := fields["ranges"].([]any)
		if !ok {
			return entity.LidarFrameMeta{}, fmt.Errorf("%w: %s: no point layout", entity.ErrPerMessageDecode, msg.Topic)
		}
		meta.PointCount = len(ranges)
	}
	return meta, nil
}

func extractTelemetry(msg *entity.RawMessage, fields map[string]any) (entity.TelemetryPoint, error) {
	values := flattenNumbers(fields)
	if len(values) == 0 {
		return entity.TelemetryPoint{}, fmt.Errorf("%w: %s: no numeric fields", entity.ErrPerMessageDecode, msg.Topic)
	}
	p := entity.TelemetryPoint{
		Topic:       msg.Topic,
		Timestamp:   stampOf(msg, fields),
		MessageType: msg.Type,
		Values:      values,
	}
	p.Latitude = floatPtr(fields, "latitude")
	p.Longitude = floatPtr(fields, "longitude")
	p.Altitude = floatPtr(fields, "altitude")
	return p, nil
}

func extractVehicle(msg *entity.RawMessage, fields map[string]any) (entity.VehicleStateSample, error) {
	values := flattenNumbers(fields)
	if len(values) == 0 {
		return entity.VehicleStateSample{}, fmt.Errorf("%w: %s: no numeric fields", entity.ErrPerMessageDecode, msg.Topic)
	}
	return entity.VehicleStateSample{
		Topic:         msg.Topic,
		Timestamp:     stampOf(msg, fields),
		MessageType:   msg.Type,
		Speed:         firstFloat(fields, speedPaths),
		SteeringAngle: firstFloat(fields, steeringPaths),
		Values:        values,
	}, nil
}

func floatPtr(fields map[string]any, path string) *float64 {
	v, ok := rosmsg.Float(fields, path)
	if !ok {
		return nil
	}
	return &v
}

func firstFloat(fields map[string]any, paths []string) *float64 {
	for _, p := range paths {
		if v := floatPtr(fields, p); v != nil {
			return v
		}
	}
	return nil
}

// flattenNumbers collects every scalar numeric leaf under dotted keys. The header and all
// arrays are left out.
func flattenNumbers(fields map[string]any) map[string]float64 {
	out := make(map[string]float64)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			if prefix == "" && k == "header" {
				continue
			}
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			switch v := val.(type) {
			case map[string]any:
				walk(key, v)
			case []any, []byte, string:
			default:
				if f, ok := rosmsg.ToFloat(v); ok {
					out[key] = f
				}
			}
		}
	}
	walk("", fields)
	return out
}

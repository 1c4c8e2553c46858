package entity

import "time"

type Modality string

const (
	ModalityCamera    Modality = "camera"
	ModalityLidar     Modality = "lidar"
	ModalityTelemetry Modality = "telemetry"
	ModalityVehicle   Modality = "vehicle"
	ModalityUnknown   Modality = "unknown"
)

// ParseModality maps a label to a Modality. ok is false for labels outside the five known ones.
func ParseModality(s string) (Modality, bool) {
	switch m := Modality(s); m {
	case ModalityCamera, ModalityLidar, ModalityTelemetry, ModalityVehicle, ModalityUnknown:
		return m, true
	}
	return ModalityUnknown, false
}

// RawMessage is one message read from the log. Data is only valid until the next read.
type RawMessage struct {
	ChannelID  uint32
	Topic      string
	Type       string
	Definition string
	Timestamp  time.Time
	Data       []byte
}

type CameraFrameMeta struct {
	Topic      string  `json:"topic" cbor:"topic"`
	Timestamp  float64 `json:"timestamp" cbor:"timestamp"`
	Format     string  `json:"format" cbor:"format"`
	ByteLength int     `json:"byte_length" cbor:"byte_length"`
	Compressed bool    `json:"compressed" cbor:"compressed"`
	Width      int     `json:"width,omitempty" cbor:"width,omitempty"`
	Height     int     `json:"height,omitempty" cbor:"height,omitempty"`
	FrameID    string  `json:"frame_id,omitempty" cbor:"frame_id,omitempty"`
}

type LidarFrameMeta struct {
	Topic       string   `json:"topic" cbor:"topic"`
	Timestamp   float64  `json:"timestamp" cbor:"timestamp"`
	MessageType string   `json:"message_type" cbor:"message_type"`
	FrameID     string   `json:"frame_id,omitempty" cbor:"frame_id,omitempty"`
	PointCount  int      `json:"point_count" cbor:"point_count"`
	Fields      []string `json:"fields,omitempty" cbor:"fields,omitempty"`
	ByteLength  int      `json:"byte_length" cbor:"byte_length"`
}

type TelemetryPoint struct {
	Topic       string             `json:"topic" cbor:"topic"`
	Timestamp   float64            `json:"timestamp" cbor:"timestamp"`
	MessageType string             `json:"message_type" cbor:"message_type"`
	Latitude    *float64           `json:"latitude,omitempty" cbor:"latitude,omitempty"`
	Longitude   *float64           `json:"longitude,omitempty" cbor:"longitude,omitempty"`
	Altitude    *float64           `json:"altitude,omitempty" cbor:"altitude,omitempty"`
	Values      map[string]float64 `json:"values,omitempty" cbor:"values,omitempty"`
}

type VehicleStateSample struct {
	Topic         string             `json:"topic" cbor:"topic"`
	Timestamp     float64            `json:"timestamp" cbor:"timestamp"`
	MessageType   string             `json:"message_type" cbor:"message_type"`
	Speed         *float64           `json:"speed,omitempty" cbor:"speed,omitempty"`
	SteeringAngle *float64           `json:"steering_angle,omitempty" cbor:"steering_angle,omitempty"`
	Values        map[string]float64 `json:"values,omitempty" cbor:"values,omitempty"`
}

// ExtractionStats aggregates what the dispatcher saw, including what it skipped.
type ExtractionStats struct {
	Messages     int              `json:"messages" cbor:"messages"`
	Records      int              `json:"records" cbor:"records"`
	Unknown      int              `json:"unknown" cbor:"unknown"`
	DecodeErrors int              `json:"decode_errors" cbor:"decode_errors"`
	Truncated    bool             `json:"truncated,omitempty" cbor:"truncated,omitempty"`
	ByModality   map[Modality]int `json:"by_modality" cbor:"by_modality"`
}

type ExtractionResult struct {
	SceneID             string               `json:"scene_id" cbor:"scene_id"`
	Camera              []CameraFrameMeta    `json:"camera" cbor:"camera"`
	Lidar               []LidarFrameMeta     `json:"lidar" cbor:"lidar"`
	Telemetry           []TelemetryPoint     `json:"telemetry" cbor:"telemetry"`
	Vehicle             []VehicleStateSample `json:"vehicle" cbor:"vehicle"`
	FrameCount          int                  `json:"frame_count" cbor:"frame_count"`
	TelemetryPointCount int                  `json:"telemetry_point_count" cbor:"telemetry_point_count"`
	Stats               ExtractionStats      `json:"stats" cbor:"stats"`
}

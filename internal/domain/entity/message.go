package entity

// SceneProcessingMessage is the inbound message from the scene.processing queue.
type SceneProcessingMessage struct {
	SceneID      string `json:"scene_id"`
	InputKey     string `json:"input_key"`
	OutputPrefix string `json:"output_prefix"`
	TaskToken    string `json:"task_token"`
}

// SceneSuccessPayload is the body of the success callback.
type SceneSuccessPayload struct {
	SceneID             string          `json:"scene_id"`
	RunID               string          `json:"run_id"`
	ExtractionKey       string          `json:"extraction_key"`
	MetadataKey         string          `json:"metadata_key"`
	Artifacts           []VideoArtifact `json:"artifacts"`
	Cameras             []CameraOutcome `json:"cameras"`
	FrameCount          int             `json:"frame_count"`
	TelemetryPointCount int             `json:"telemetry_point_count"`
	LidarFrameCount     int             `json:"lidar_frame_count"`
	VehicleSampleCount  int             `json:"vehicle_sample_count"`
	DecodeErrors        int             `json:"decode_errors"`
	UnknownMessages     int             `json:"unknown_messages"`
	FrameMisses         int             `json:"frame_misses"`
}

type CallbackStatus string

const (
	CallbackSuccess CallbackStatus = "SUCCESS"
	CallbackFailure CallbackStatus = "FAILURE"
)

// SceneCallbackMessage is published to the workflow engine exactly once per invocation.
type SceneCallbackMessage struct {
	TaskToken string               `json:"task_token"`
	Status    CallbackStatus       `json:"status"`
	Output    *SceneSuccessPayload `json:"output,omitempty"`
	ErrorCode ErrorCode            `json:"error_code,omitempty"`
	Cause     string               `json:"cause,omitempty"`
}

// VideoMetadataDocument lists the cameras of a scene and where their videos live.
type VideoMetadataDocument struct {
	SceneID   string          `json:"scene_id"`
	Cameras   []CameraOutcome `json:"cameras"`
	Artifacts []VideoArtifact `json:"artifacts"`
}

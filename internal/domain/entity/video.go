package entity

// CameraTopic is a channel that carries compressed camera images.
type CameraTopic struct {
	Topic      string
	Name       string
	ChannelIDs []uint32
}

// DecodedFrame points at a recovered JPEG on disk.
type DecodedFrame struct {
	Camera    string
	Sequence  int
	Timestamp float64
	Path      string
	Width     int
	Height    int
}

type VideoArtifact struct {
	Camera     string  `json:"camera"`
	SceneID    string  `json:"scene_id"`
	Location   string  `json:"location"`
	Codec      string  `json:"codec"`
	Strategy   string  `json:"strategy"`
	ByteSize   int64   `json:"byte_size"`
	FrameCount int     `json:"frame_count"`
	Duration   float64 `json:"duration_seconds,omitempty"`
}

type CameraStatus string

const (
	CameraStatusEncoded  CameraStatus = "ENCODED"
	CameraStatusNoFrames CameraStatus = "NO_FRAMES"
	CameraStatusFailed   CameraStatus = "FAILED"
)

// CameraOutcome is the per-camera line of the success report.
type CameraOutcome struct {
	Camera     string       `json:"camera"`
	Topic      string       `json:"topic"`
	FrameCount int          `json:"frame_count"`
	Misses     int          `json:"frame_misses"`
	Status     CameraStatus `json:"status"`
	Location   string       `json:"location,omitempty"`
	Codec      string       `json:"codec,omitempty"`
	Error      string       `json:"error,omitempty"`
}

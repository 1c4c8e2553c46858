package entity

import (
	"time"

	"github.com/google/uuid"
)

type SceneStatus string

const (
	SceneStatusDownloading SceneStatus = "DOWNLOADING"
	SceneStatusExtracting  SceneStatus = "EXTRACTING"
	SceneStatusEncoding    SceneStatus = "ENCODING"
	SceneStatusUploading   SceneStatus = "UPLOADING"
	SceneStatusReporting   SceneStatus = "REPORTING"
	SceneStatusSucceeded   SceneStatus = "SUCCEEDED"
	SceneStatusFailed      SceneStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s SceneStatus) IsTerminal() bool {
	return s == SceneStatusSucceeded || s == SceneStatusFailed
}

// SceneRun tracks one invocation of the pipeline for one scene.
type SceneRun struct {
	ID           uuid.UUID
	SceneID      string
	InputKey     string
	OutputPrefix string
	Status       SceneStatus
	FrameCount   int
	CameraCount  int
	ErrorCode    ErrorCode
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewSceneRun(sceneID, inputKey, outputPrefix string) *SceneRun {
	now := time.Now().UTC()
	return &SceneRun{
		ID:           uuid.New(),
		SceneID:      sceneID,
		InputKey:     inputKey,
		OutputPrefix: outputPrefix,
		Status:       SceneStatusDownloading,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Advance moves the run to the next non-terminal state. Terminal runs are left untouched.
func (r *SceneRun) Advance(status SceneStatus) {
	if r.Status.IsTerminal() {
		return
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
}

func (r *SceneRun) MarkSucceeded(frameCount, cameraCount int) {
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	r.Status = SceneStatusSucceeded
	r.FrameCount = frameCount
	r.CameraCount = cameraCount
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *SceneRun) MarkFailed(code ErrorCode, errMsg string) {
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	r.Status = SceneStatusFailed
	r.ErrorCode = code
	r.ErrorMessage = errMsg
	r.UpdatedAt = now
	r.CompletedAt = &now
}

package entity

import (
	"errors"
	"fmt"
)

// ErrorCode is the coarse failure category reported to the workflow engine.
type ErrorCode string

const (
	CodeConfiguration      ErrorCode = "ConfigurationError"
	CodeSourceUnavailable  ErrorCode = "SourceUnavailableError"
	CodeUploadVerification ErrorCode = "UploadVerificationError"
	CodeInternal           ErrorCode = "InternalError"
)

// Recoverable conditions. They are absorbed where they happen and only surface as counts.
var (
	ErrPerMessageDecode   = errors.New("per-message decode failed")
	ErrFrameRecoveryMiss  = errors.New("no decodable image in payload")
	ErrEncoderUnavailable = errors.New("encoder unavailable")
	ErrEncoderTimeout     = errors.New("encoder timed out")
	ErrEncoderEmptyOutput = errors.New("encoder produced empty output")
	ErrChainExhausted     = errors.New("all encoders failed")
	ErrObjectNotFound     = errors.New("object not found")
)

// StageError is a fatal error that aborts the scene.
type StageError struct {
	Code  ErrorCode
	Stage string
	Err   error
}

func NewStageError(code ErrorCode, stage string, err error) *StageError {
	return &StageError{Code: code, Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the error code of err, defaulting to CodeInternal.
func CodeOf(err error) ErrorCode {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

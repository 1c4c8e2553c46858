package port

import (
	"context"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

// WorkflowReporter resolves a workflow task token. Exactly one of its methods is called per invocation.
type WorkflowReporter interface {
	ReportSuccess(ctx context.Context, token string, payload entity.SceneSuccessPayload) error
	ReportFailure(ctx context.Context, token string, code entity.ErrorCode, cause string) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}

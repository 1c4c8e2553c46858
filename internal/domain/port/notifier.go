package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, sceneID string, inputKey string, code string, errorMsg string) error
}

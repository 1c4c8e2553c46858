package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

// SceneMessageHandler adapts queue deliveries to ProcessSceneUseCase. It only returns an
// error when the delivery should be retried.
type SceneMessageHandler struct {
	uc     *ProcessSceneUseCase
	dlq    port.DLQPublisher
	logger *zap.Logger
}

func NewSceneMessageHandler(uc *ProcessSceneUseCase, dlq port.DLQPublisher, logger *zap.Logger) *SceneMessageHandler {
	return &SceneMessageHandler{uc: uc, dlq: dlq, logger: logger}
}

func (h *SceneMessageHandler) Handle(ctx context.Context, body []byte) error {
	var msg entity.SceneProcessingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", body))
		return h.deadLetter(ctx, body, "unmarshal_error: "+err.Error())
	}

	// Without a token nobody can be told about the failure.
	if msg.TaskToken == "" {
		h.logger.Error("message without task token", zap.String("scene_id", msg.SceneID))
		return h.deadLetter(ctx, body, "missing task token")
	}

	err := h.uc.Execute(ctx, SceneInput{
		SceneID:      msg.SceneID,
		InputKey:     msg.InputKey,
		OutputPrefix: msg.OutputPrefix,
		TaskToken:    msg.TaskToken,
	})
	if errors.Is(err, ErrReportUndelivered) {
		return err
	}
	if err != nil {
		h.logger.Info("scene failed and was reported",
			zap.String("scene_id", msg.SceneID),
			zap.String("error_code", string(entity.CodeOf(err))),
		)
	}
	return nil
}

func (h *SceneMessageHandler) deadLetter(ctx context.Context, body []byte, reason string) error {
	if err := h.dlq.PublishToDLQ(ctx, body, reason); err != nil {
		h.logger.Error("failed to publish to dlq", zap.Error(err))
		return err
	}
	return nil
}

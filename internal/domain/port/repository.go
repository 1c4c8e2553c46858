package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

type SceneRunRepository interface {
	Create(ctx context.Context, run *entity.SceneRun) error
	Update(ctx context.Context, run *entity.SceneRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.SceneRun, error)
}

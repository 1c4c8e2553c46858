package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

var ErrRunNotFound = errors.New("scene run not found")

type SceneRunRepository struct {
	pool *pgxpool.Pool
}

func NewSceneRunRepository(pool *pgxpool.Pool) *SceneRunRepository {
	return &SceneRunRepository{pool: pool}
}

func (r *SceneRunRepository) Create(ctx context.Context, run *entity.SceneRun) error {
	query := `
		INSERT INTO scene_runs (
			id, scene_id, input_key, output_prefix, status, frame_count,
			camera_count, error_code, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.SceneID, run.InputKey, run.OutputPrefix, string(run.Status),
		run.FrameCount, run.CameraCount, string(run.ErrorCode), run.ErrorMessage,
		run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scene run: %w", err)
	}
	return nil
}

func (r *SceneRunRepository) Update(ctx context.Context, run *entity.SceneRun) error {
	query := `
		UPDATE scene_runs SET
			status=$2, frame_count=$3, camera_count=$4, error_code=$5,
			error_message=$6, updated_at=$7, completed_at=$8
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.FrameCount, run.CameraCount,
		string(run.ErrorCode), run.ErrorMessage, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update scene run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update scene run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

func (r *SceneRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.SceneRun, error) {
	query := `
		SELECT id, scene_id, input_key, output_prefix, status, frame_count,
			camera_count, error_code, error_message, created_at, updated_at, completed_at
		FROM scene_runs WHERE id=$1`

	run := &entity.SceneRun{}
	var status, code string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.SceneID, &run.InputKey, &run.OutputPrefix, &status,
		&run.FrameCount, &run.CameraCount, &code, &run.ErrorMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find scene run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find scene run by id: %w", err)
	}
	run.Status = entity.SceneStatus(status)
	run.ErrorCode = entity.ErrorCode(code)
	return run, nil
}

// Package bootstrap wires the scene pipeline from configuration for both entrypoints.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"github.com/roadscope/scene-processing-service/internal/extraction"
	"github.com/roadscope/scene-processing-service/internal/infra/config"
	"github.com/roadscope/scene-processing-service/internal/infra/email"
	"github.com/roadscope/scene-processing-service/internal/infra/ffmpeg"
	"github.com/roadscope/scene-processing-service/internal/infra/gifanim"
	"github.com/roadscope/scene-processing-service/internal/infra/mjpeg"
	miniostorage "github.com/roadscope/scene-processing-service/internal/infra/minio"
	"github.com/roadscope/scene-processing-service/internal/infra/opencv"
	"github.com/roadscope/scene-processing-service/internal/infra/postgres"
	"github.com/roadscope/scene-processing-service/internal/usecase"
	"go.uber.org/zap"
)

// Pipeline is a ready ProcessSceneUseCase plus the resources to release after it.
type Pipeline struct {
	UseCase *usecase.ProcessSceneUseCase
	pool    *pgxpool.Pool
}

func (p *Pipeline) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// NewPipeline fails only on configuration the pipeline cannot run with. Its errors carry
// entity.CodeConfiguration.
func NewPipeline(ctx context.Context, cfg *config.Config, reporter port.WorkflowReporter, log *zap.Logger) (*Pipeline, error) {
	rules := extraction.DefaultRules
	if cfg.ClassifierRulesPath != "" {
		loaded, err := extraction.LoadRules(cfg.ClassifierRulesPath)
		if err != nil {
			return nil, entity.NewStageError(entity.CodeConfiguration, "classifier rules", err)
		}
		rules = loaded
		log.Info("classifier rules loaded", zap.String("path", cfg.ClassifierRulesPath), zap.Int("rules", len(rules)))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		InputBucket:  cfg.MinIOInputBucket,
		OutputBucket: cfg.MinIOOutputBucket,
	})
	if err != nil {
		return nil, entity.NewStageError(entity.CodeConfiguration, "storage", fmt.Errorf("create minio storage: %w", err))
	}
	if err := storage.EnsureBuckets(ctx); err != nil {
		log.Warn("could not ensure buckets", zap.Error(err))
	}

	p := &Pipeline{}
	var repo port.SceneRunRepository
	if cfg.DatabaseURL != "" {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Warn("migration warning", zap.Error(err))
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, entity.NewStageError(entity.CodeConfiguration, "database", fmt.Errorf("connect to postgres: %w", err))
		}
		p.pool = pool
		repo = postgres.NewSceneRunRepository(pool)
	}

	var notifier port.FailureNotifier
	if cfg.NotifyEmail != "" {
		notifier = email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotifyEmail, log)
	}

	ff := ffmpeg.NewEncoder(ffmpeg.Config{
		Binary:      cfg.FFmpegBinary,
		ProbeBinary: cfg.FFprobeBinary,
		Timeout:     cfg.FFmpegTimeout,
	}, log)
	encoders := []port.VideoEncoder{ff}
	encoders = append(encoders, opencv.Encoders(log)...)
	encoders = append(encoders, mjpeg.NewWriter(log), gifanim.NewWriter(log))
	chain := usecase.NewEncoderChain(encoders, ff, log)
	log.Info("encoder chain ready", zap.Strings("strategies", chain.Strategies()))

	p.UseCase = usecase.NewProcessSceneUseCase(
		storage, reporter, repo, notifier,
		extraction.NewClassifier(rules), chain,
		log,
		usecase.ProcessSceneConfig{
			TempDir:      cfg.TempDir,
			FPS:          cfg.VideoFPS,
			Parallelism:  cfg.EncodeParallelism,
			ResultFormat: cfg.ResultFormat,
			JPEGQuality:  cfg.JPEGQuality,
		},
	)
	return p, nil
}

// NewScenePipeline builds the pipeline for an invocation that already holds its task token.
// A setup failure is reported against the token before it is returned, so the token is
// resolved even though no scene runs.
func NewScenePipeline(ctx context.Context, cfg *config.Config, reporter port.WorkflowReporter, token string, log *zap.Logger) (*Pipeline, error) {
	p, err := NewPipeline(ctx, cfg, reporter, log)
	if err == nil {
		return p, nil
	}
	if rerr := usecase.ReportSetupFailure(ctx, reporter, token, err, log); rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	return nil, err
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/roadscope/scene-processing-service/internal/camera"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"github.com/roadscope/scene-processing-service/internal/extraction"
	"github.com/roadscope/scene-processing-service/internal/infra/metrics"
	"github.com/roadscope/scene-processing-service/internal/infra/rosbag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SceneInput identifies one invocation. Every field is required.
type SceneInput struct {
	SceneID      string
	InputKey     string
	OutputPrefix string
	TaskToken    string
}

func (in SceneInput) validate() error {
	fields := []struct{ name, value string }{
		{"scene id", in.SceneID},
		{"input key", in.InputKey},
		{"output prefix", in.OutputPrefix},
		{"task token", in.TaskToken},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type ProcessSceneUseCase struct {
	storage    port.ObjectStore
	reporter   port.WorkflowReporter
	repo       port.SceneRunRepository
	notifier   port.FailureNotifier
	dispatcher *extraction.Dispatcher
	collector  *camera.Collector
	chain      *EncoderChain
	logger     *zap.Logger
	cfg        ProcessSceneConfig
}

type ProcessSceneConfig struct {
	TempDir      string
	FPS          int
	Parallelism  int
	ResultFormat string
	JPEGQuality  int
}

// NewProcessSceneUseCase accepts a nil repo and a nil notifier.
func NewProcessSceneUseCase(
	storage port.ObjectStore,
	reporter port.WorkflowReporter,
	repo port.SceneRunRepository,
	notifier port.FailureNotifier,
	classifier *extraction.Classifier,
	chain *EncoderChain,
	logger *zap.Logger,
	cfg ProcessSceneConfig,
) *ProcessSceneUseCase {
	if cfg.FPS <= 0 {
		cfg.FPS = 10
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}
	if cfg.ResultFormat == "" {
		cfg.ResultFormat = "json"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &ProcessSceneUseCase{
		storage:    storage,
		reporter:   reporter,
		repo:       repo,
		notifier:   notifier,
		dispatcher: extraction.NewDispatcher(classifier, logger),
		collector:  camera.NewCollector(cfg.JPEGQuality, logger),
		chain:      chain,
		logger:     logger,
		cfg:        cfg,
	}
}

// Execute processes one scene and emits exactly one report for it, including when the
// input is invalid or the pipeline panics. The returned error is the reason of a failure
// report, or the error of the report call itself.
func (uc *ProcessSceneUseCase) Execute(ctx context.Context, in SceneInput) (err error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessSceneUseCase.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("scene.id", in.SceneID),
		attribute.String("scene.input_key", in.InputKey),
	)

	totalTimer := time.Now()
	run := entity.NewSceneRun(in.SceneID, in.InputKey, in.OutputPrefix)
	log := uc.logger.With(zap.String("scene_id", in.SceneID), zap.String("run_id", run.ID.String()))

	stored := false
	guard := newReportGuard(uc.reporter, in.TaskToken, log)
	guard.onFailure = func(ctx context.Context, code entity.ErrorCode, cause string) {
		uc.fail(ctx, run, in, code, cause, stored, log)
		span.SetStatus(codes.Error, cause)
	}
	defer guard.Settle(ctx, &err)

	if err := in.validate(); err != nil {
		return entity.NewStageError(entity.CodeConfiguration, "validate", err)
	}

	metrics.ActiveScenes.Inc()
	defer metrics.ActiveScenes.Dec()

	uc.persist(ctx, run, true, log)
	stored = true

	payload, err := uc.pipeline(ctx, in, run, log)
	if err != nil {
		log.Error("scene failed", zap.Error(err))
		return err
	}

	if err := guard.Success(ctx, *payload); err != nil {
		log.Error("failed to report scene success", zap.Error(err))
		run.MarkFailed(entity.CodeInternal, err.Error())
		uc.persist(ctx, run, false, log)
		metrics.ScenesProcessedTotal.WithLabelValues("report_failed").Inc()
		return err
	}

	run.MarkSucceeded(payload.FrameCount, len(payload.Cameras))
	uc.persist(ctx, run, false, log)
	metrics.ScenesProcessedTotal.WithLabelValues("succeeded").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	log.Info("scene processed",
		zap.Int("frame_count", payload.FrameCount),
		zap.Int("cameras", len(payload.Cameras)),
		zap.Int("artifacts", len(payload.Artifacts)),
	)
	return nil
}

func (uc *ProcessSceneUseCase) pipeline(ctx context.Context, in SceneInput, run *entity.SceneRun, log *zap.Logger) (*entity.SceneSuccessPayload, error) {
	workDir := filepath.Join(uc.cfg.TempDir, run.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, entity.NewStageError(entity.CodeInternal, "workdir", err)
	}
	defer os.RemoveAll(workDir)

	bagPath := filepath.Join(workDir, "input.bag")
	err := uc.stage(ctx, "download", func(ctx context.Context) error {
		if err := uc.storage.Download(ctx, in.InputKey, bagPath); err != nil {
			return entity.NewStageError(entity.CodeSourceUnavailable, "download", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.advance(ctx, run, entity.SceneStatusExtracting, log)
	bag, err := rosbag.Open(bagPath)
	if err != nil {
		return nil, entity.NewStageError(entity.CodeSourceUnavailable, "open", err)
	}
	defer bag.Close()

	var result *entity.ExtractionResult
	err = uc.stage(ctx, "extract", func(ctx context.Context) error {
		it, err := bag.Messages(nil)
		if err != nil {
			return entity.NewStageError(entity.CodeSourceUnavailable, "extract", err)
		}
		result, err = uc.dispatcher.Extract(ctx, it, in.SceneID)
		if err != nil {
			return entity.NewStageError(entity.CodeInternal, "extract", err)
		}
		log.Info("extraction finished",
			zap.Int("messages", result.Stats.Messages),
			zap.Int("records", result.Stats.Records),
			zap.Int("unknown", result.Stats.Unknown),
			zap.Int("decode_errors", result.Stats.DecodeErrors),
			zap.Int("skipped_chunks", it.SkippedChunks),
			zap.Bool("truncated", result.Stats.Truncated),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.advance(ctx, run, entity.SceneStatusEncoding, log)
	var outcomes []entity.CameraOutcome
	var encoded map[string]*EncodeResult
	err = uc.stage(ctx, "encode", func(ctx context.Context) error {
		var err error
		outcomes, encoded, err = uc.encodeCameras(ctx, bag, workDir, log)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.advance(ctx, run, entity.SceneStatusUploading, log)
	var payload *entity.SceneSuccessPayload
	err = uc.stage(ctx, "upload", func(ctx context.Context) error {
		var err error
		payload, err = uc.upload(ctx, in, run, workDir, result, outcomes, encoded)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.advance(ctx, run, entity.SceneStatusReporting, log)
	return payload, nil
}

// encodeCameras runs a second pass restricted to camera topics, then encodes each camera
// independently. A camera that fails never fails the scene.
func (uc *ProcessSceneUseCase) encodeCameras(ctx context.Context, bag *rosbag.Reader, workDir string, log *zap.Logger) ([]entity.CameraOutcome, map[string]*EncodeResult, error) {
	conns, err := bag.Connections()
	if err != nil {
		log.Warn("connection list incomplete", zap.Error(err))
	}
	topics, replaced := camera.ResolveNames(camera.DiscoverTopics(conns))
	for _, t := range replaced {
		log.Warn("camera name collision, topic replaced", zap.String("camera", t.Name), zap.String("topic", t.Topic))
	}
	if len(topics) == 0 {
		log.Info("no camera topics in recording")
		return []entity.CameraOutcome{}, map[string]*EncodeResult{}, nil
	}

	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[t.Topic] = true
	}
	it, err := bag.Messages(func(c *rosbag.Connection) bool { return wanted[c.Topic] })
	if err != nil {
		return nil, nil, entity.NewStageError(entity.CodeSourceUnavailable, "frames", err)
	}
	cameras, err := uc.collector.Collect(ctx, it, topics, filepath.Join(workDir, "frames"))
	if err != nil {
		return nil, nil, entity.NewStageError(entity.CodeInternal, "frames", err)
	}

	videoDir := filepath.Join(workDir, "videos")
	if err := os.MkdirAll(videoDir, 0755); err != nil {
		return nil, nil, entity.NewStageError(entity.CodeInternal, "encode", err)
	}

	outcomes := make([]entity.CameraOutcome, len(cameras))
	encoded := make(map[string]*EncodeResult)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Parallelism)
	for i, cf := range cameras {
		outcomes[i] = entity.CameraOutcome{
			Camera:     cf.Topic.Name,
			Topic:      cf.Topic.Topic,
			FrameCount: len(cf.Frames),
			Misses:     cf.Misses,
			Status:     entity.CameraStatusNoFrames,
		}
		if len(cf.Frames) == 0 {
			continue
		}

		g.Go(func() error {
			res, err := uc.encodeCamera(gctx, cf, videoDir)
			if err != nil {
				log.Warn("camera not encoded", zap.String("camera", cf.Topic.Name), zap.Error(err))
				outcomes[i].Status = entity.CameraStatusFailed
				outcomes[i].Error = err.Error()
				return nil
			}
			outcomes[i].Status = entity.CameraStatusEncoded
			outcomes[i].Codec = res.Codec
			mu.Lock()
			encoded[cf.Topic.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, entity.NewStageError(entity.CodeInternal, "encode", err)
	}
	return outcomes, encoded, nil
}

func (uc *ProcessSceneUseCase) encodeCamera(ctx context.Context, cf *camera.CameraFrames, videoDir string) (*EncodeResult, error) {
	set, err := cf.Sequence()
	if err != nil {
		return nil, err
	}
	return uc.chain.Encode(ctx, set, filepath.Join(videoDir, cf.Topic.Name+".mp4"), uc.cfg.FPS)
}

func (uc *ProcessSceneUseCase) upload(
	ctx context.Context,
	in SceneInput,
	run *entity.SceneRun,
	workDir string,
	result *entity.ExtractionResult,
	outcomes []entity.CameraOutcome,
	encoded map[string]*EncodeResult,
) (*entity.SceneSuccessPayload, error) {
	doc, ext, contentType, err := uc.encodeResult(result)
	if err != nil {
		return nil, entity.NewStageError(entity.CodeInternal, "upload", err)
	}
	extractionKey := OutputKey(in.OutputPrefix, in.SceneID, "extraction."+ext)
	if err := uc.uploadBytes(ctx, workDir, extractionKey, doc, contentType); err != nil {
		return nil, err
	}

	artifacts := []entity.VideoArtifact{}
	misses := 0
	for i := range outcomes {
		misses += outcomes[i].Misses
		res, ok := encoded[outcomes[i].Camera]
		if !ok {
			continue
		}
		key := OutputKey(in.OutputPrefix, in.SceneID, "videos", outcomes[i].Camera+filepath.Ext(res.Path))
		if err := uc.uploadFile(ctx, key, res.Path, contentTypeFor(res.Path)); err != nil {
			return nil, err
		}
		outcomes[i].Location = key
		artifacts = append(artifacts, entity.VideoArtifact{
			Camera:     outcomes[i].Camera,
			SceneID:    in.SceneID,
			Location:   key,
			Codec:      res.Codec,
			Strategy:   res.Strategy,
			ByteSize:   res.Size,
			FrameCount: outcomes[i].FrameCount,
			Duration:   res.Duration,
		})
	}

	metadata, err := json.MarshalIndent(entity.VideoMetadataDocument{
		SceneID:   in.SceneID,
		Cameras:   outcomes,
		Artifacts: artifacts,
	}, "", "  ")
	if err != nil {
		return nil, entity.NewStageError(entity.CodeInternal, "upload", err)
	}
	metadataKey := OutputKey(in.OutputPrefix, in.SceneID, "videos", "metadata.json")
	if err := uc.uploadBytes(ctx, workDir, metadataKey, metadata, "application/json"); err != nil {
		return nil, err
	}

	return &entity.SceneSuccessPayload{
		SceneID:             in.SceneID,
		RunID:               run.ID.String(),
		ExtractionKey:       extractionKey,
		MetadataKey:         metadataKey,
		Artifacts:           artifacts,
		Cameras:             outcomes,
		FrameCount:          result.FrameCount,
		TelemetryPointCount: result.TelemetryPointCount,
		LidarFrameCount:     len(result.Lidar),
		VehicleSampleCount:  len(result.Vehicle),
		DecodeErrors:        result.Stats.DecodeErrors,
		UnknownMessages:     result.Stats.Unknown,
		FrameMisses:         misses,
	}, nil
}

func (uc *ProcessSceneUseCase) encodeResult(result *entity.ExtractionResult) ([]byte, string, string, error) {
	switch uc.cfg.ResultFormat {
	case "cbor":
		data, err := cbor.Marshal(result)
		return data, "cbor", "application/cbor", err
	default:
		data, err := json.Marshal(result)
		return data, "json", "application/json", err
	}
}

func (uc *ProcessSceneUseCase) uploadBytes(ctx context.Context, workDir, key string, data []byte, contentType string) error {
	path := filepath.Join(workDir, "upload-"+filepath.Base(key))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return entity.NewStageError(entity.CodeInternal, "upload", err)
	}
	return uc.uploadFile(ctx, key, path, contentType)
}

// uploadFile streams path to key and checks that the stored object has the local size.
func (uc *ProcessSceneUseCase) uploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return entity.NewStageError(entity.CodeInternal, "upload", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return entity.NewStageError(entity.CodeInternal, "upload", err)
	}

	if err := uc.storage.Upload(ctx, key, f, info.Size(), contentType); err != nil {
		return entity.NewStageError(entity.CodeUploadVerification, "upload", fmt.Errorf("%s: %w", key, err))
	}
	size, err := uc.storage.Head(ctx, key)
	if err != nil {
		return entity.NewStageError(entity.CodeUploadVerification, "verify", fmt.Errorf("%s: %w", key, err))
	}
	if size != info.Size() {
		return entity.NewStageError(entity.CodeUploadVerification, "verify",
			fmt.Errorf("%s: stored %d bytes, wrote %d", key, size, info.Size()))
	}
	return nil
}

func (uc *ProcessSceneUseCase) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := otel.Tracer("usecase").Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

func (uc *ProcessSceneUseCase) advance(ctx context.Context, run *entity.SceneRun, status entity.SceneStatus, log *zap.Logger) {
	run.Advance(status)
	log.Debug("scene state changed", zap.String("status", string(status)))
	uc.persist(ctx, run, false, log)
}

// persist is best effort; the scene run table is bookkeeping, not a source of truth.
func (uc *ProcessSceneUseCase) persist(ctx context.Context, run *entity.SceneRun, create bool, log *zap.Logger) {
	if uc.repo == nil {
		return
	}
	var err error
	if create {
		err = uc.repo.Create(ctx, run)
	} else {
		err = uc.repo.Update(ctx, run)
	}
	if err != nil {
		log.Warn("failed to persist scene run", zap.String("status", string(run.Status)), zap.Error(err))
	}
}

func (uc *ProcessSceneUseCase) fail(ctx context.Context, run *entity.SceneRun, in SceneInput, code entity.ErrorCode, cause string, stored bool, log *zap.Logger) {
	run.MarkFailed(code, cause)
	if stored {
		uc.persist(ctx, run, false, log)
	}
	metrics.ScenesProcessedTotal.WithLabelValues("failed").Inc()

	if uc.notifier != nil {
		if err := uc.notifier.NotifyFailure(ctx, in.SceneID, in.InputKey, string(code), cause); err != nil {
			log.Warn("failed to send failure notification", zap.Error(err))
		}
	}
}

// OutputKey joins the scene-scoped parts under prefix. The prefix may be a bare key prefix
// or an s3:// URL.
func OutputKey(prefix, sceneID string, parts ...string) string {
	segs := append([]string{strings.TrimSuffix(prefix, "/"), sceneID}, parts...)
	return strings.Join(segs, "/")
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	case ".gif":
		return "image/gif"
	}
	return "application/octet-stream"
}

package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failure struct {
	token string
	code  entity.ErrorCode
}

type countingReporter struct {
	successes int
	failures  []failure
	err       error
}

func (r *countingReporter) ReportSuccess(context.Context, string, entity.SceneSuccessPayload) error {
	r.successes++
	return r.err
}

func (r *countingReporter) ReportFailure(_ context.Context, token string, code entity.ErrorCode, _ string) error {
	r.failures = append(r.failures, failure{token: token, code: code})
	return r.err
}

func badRulesConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - modality: radar\n    tokens: [radar]\n"), 0o644))
	return &config.Config{ClassifierRulesPath: path}
}

func TestNewPipelineBadRulesIsConfigurationError(t *testing.T) {
	_, err := NewPipeline(context.Background(), badRulesConfig(t), &countingReporter{}, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, entity.CodeConfiguration, entity.CodeOf(err))
}

func TestNewScenePipelineReportsSetupFailure(t *testing.T) {
	r := &countingReporter{}
	p, err := NewScenePipeline(context.Background(), badRulesConfig(t), r, "task-1", zap.NewNop())

	require.Error(t, err)
	assert.Nil(t, p)
	assert.Zero(t, r.successes)
	require.Len(t, r.failures, 1)
	assert.Equal(t, failure{token: "task-1", code: entity.CodeConfiguration}, r.failures[0])
}

func TestNewScenePipelineUndeliveredReport(t *testing.T) {
	r := &countingReporter{err: errors.New("broker down")}
	_, err := NewScenePipeline(context.Background(), badRulesConfig(t), r, "task-1", zap.NewNop())

	require.Error(t, err)
	assert.Len(t, r.failures, 1)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewScenePipelineWithoutToken(t *testing.T) {
	r := &countingReporter{}
	_, err := NewScenePipeline(context.Background(), badRulesConfig(t), r, "", zap.NewNop())

	require.Error(t, err)
	assert.Empty(t, r.failures)
}

package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func guarded(g *reportGuard, fn func() error) (err error) {
	defer g.Settle(context.Background(), &err)
	return fn()
}

func TestReportGuardSuccessOnce(t *testing.T) {
	r := &recordingReporter{}
	g := newReportGuard(r, "tok", zap.NewNop())

	err := guarded(g, func() error {
		require.NoError(t, g.Success(context.Background(), entity.SceneSuccessPayload{SceneID: "s"}))
		assert.ErrorIs(t, g.Success(context.Background(), entity.SceneSuccessPayload{}), errAlreadyReported)
		assert.ErrorIs(t, g.Failure(context.Background(), entity.CodeInternal, "late"), errAlreadyReported)
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, r.successes, 1)
	assert.Empty(t, r.failures)
}

func TestReportGuardSettleReportsError(t *testing.T) {
	r := &recordingReporter{}
	g := newReportGuard(r, "tok", zap.NewNop())
	var hookCode entity.ErrorCode
	g.onFailure = func(_ context.Context, code entity.ErrorCode, _ string) { hookCode = code }

	err := guarded(g, func() error {
		return entity.NewStageError(entity.CodeSourceUnavailable, "download", errors.New("gone"))
	})

	require.Error(t, err)
	require.Len(t, r.failures, 1)
	assert.Equal(t, entity.CodeSourceUnavailable, r.failures[0].code)
	assert.Contains(t, r.failures[0].cause, "gone")
	assert.Equal(t, entity.CodeSourceUnavailable, hookCode)
}

func TestReportGuardSettleWithoutReport(t *testing.T) {
	r := &recordingReporter{}
	g := newReportGuard(r, "tok", zap.NewNop())

	err := guarded(g, func() error { return nil })

	assert.Equal(t, entity.CodeInternal, entity.CodeOf(err))
	require.Len(t, r.failures, 1)
	assert.Equal(t, entity.CodeInternal, r.failures[0].code)
}

func TestReportGuardRecoversPanic(t *testing.T) {
	r := &recordingReporter{}
	g := newReportGuard(r, "tok", zap.NewNop())

	err := guarded(g, func() error { panic("boom") })

	require.Error(t, err)
	assert.Equal(t, entity.CodeInternal, entity.CodeOf(err))
	require.Len(t, r.failures, 1)
	assert.Contains(t, r.failures[0].cause, "boom")
	assert.Empty(t, r.successes)
}

func TestReportGuardPanicAfterSuccess(t *testing.T) {
	r := &recordingReporter{}
	g := newReportGuard(r, "tok", zap.NewNop())

	err := guarded(g, func() error {
		_ = g.Success(context.Background(), entity.SceneSuccessPayload{})
		panic("after report")
	})

	require.Error(t, err)
	assert.Len(t, r.successes, 1)
	assert.Empty(t, r.failures)
}

func TestReportSetupFailure(t *testing.T) {
	t.Run("uncoded error is a configuration error", func(t *testing.T) {
		r := &recordingReporter{}
		err := ReportSetupFailure(context.Background(), r, "tok", errors.New("bad rules"), zap.NewNop())
		require.NoError(t, err)
		require.Len(t, r.failures, 1)
		assert.Equal(t, failureReport{token: "tok", code: entity.CodeConfiguration, cause: "bad rules"}, r.failures[0])
		assert.Empty(t, r.successes)
	})

	t.Run("stage error keeps its code", func(t *testing.T) {
		r := &recordingReporter{}
		cause := entity.NewStageError(entity.CodeSourceUnavailable, "storage", errors.New("down"))
		require.NoError(t, ReportSetupFailure(context.Background(), r, "tok", cause, zap.NewNop()))
		require.Len(t, r.failures, 1)
		assert.Equal(t, entity.CodeSourceUnavailable, r.failures[0].code)
	})

	t.Run("no token", func(t *testing.T) {
		r := &recordingReporter{}
		require.NoError(t, ReportSetupFailure(context.Background(), r, "", errors.New("x"), zap.NewNop()))
		assert.Zero(t, r.total())
	})
}

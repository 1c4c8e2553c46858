package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/domain/port"
	"github.com/roadscope/scene-processing-service/internal/infra/metrics"
	"go.uber.org/zap"
)

const reportTimeout = 30 * time.Second

var (
	errAlreadyReported = errors.New("scene already reported")

	// ErrReportUndelivered means the report call itself failed. Redelivering the scene is up
	// to the caller.
	ErrReportUndelivered = errors.New("report not delivered")
)

// reportGuard owns the task token of one invocation. Whatever happens, one report leaves
// through it: Success or Failure when the pipeline decides, Settle otherwise.
type reportGuard struct {
	reporter  port.WorkflowReporter
	token     string
	onFailure func(ctx context.Context, code entity.ErrorCode, cause string)
	logger    *zap.Logger
	done      bool
}

func newReportGuard(reporter port.WorkflowReporter, token string, logger *zap.Logger) *reportGuard {
	return &reportGuard{reporter: reporter, token: token, logger: logger}
}

func (g *reportGuard) Success(ctx context.Context, payload entity.SceneSuccessPayload) error {
	if g.done {
		return errAlreadyReported
	}
	g.done = true
	if g.token == "" {
		g.logger.Warn("no task token, success report skipped")
		return nil
	}

	ctx, cancel := reportContext(ctx)
	defer cancel()
	metrics.ReportsTotal.WithLabelValues("success").Inc()
	if err := g.reporter.ReportSuccess(ctx, g.token, payload); err != nil {
		return fmt.Errorf("%w: success: %w", ErrReportUndelivered, err)
	}
	return nil
}

func (g *reportGuard) Failure(ctx context.Context, code entity.ErrorCode, cause string) error {
	if g.done {
		return errAlreadyReported
	}
	g.done = true
	if g.onFailure != nil {
		g.onFailure(ctx, code, cause)
	}
	if g.token == "" {
		g.logger.Warn("no task token, failure report skipped", zap.String("error_code", string(code)))
		return nil
	}

	ctx, cancel := reportContext(ctx)
	defer cancel()
	metrics.ReportsTotal.WithLabelValues("failure").Inc()
	if err := g.reporter.ReportFailure(ctx, g.token, code, cause); err != nil {
		return fmt.Errorf("%w: failure: %w", ErrReportUndelivered, err)
	}
	return nil
}

// Settle must be deferred directly. It converts a panic into an InternalError and reports
// *errp as a failure when nothing was reported yet.
func (g *reportGuard) Settle(ctx context.Context, errp *error) {
	if r := recover(); r != nil {
		g.logger.Error("panic while processing scene", zap.Any("panic", r), zap.Stack("stack"))
		*errp = entity.NewStageError(entity.CodeInternal, "panic", fmt.Errorf("%v", r))
	}
	if g.done {
		return
	}

	err := *errp
	if err == nil {
		err = entity.NewStageError(entity.CodeInternal, "report", errors.New("scene finished without a report"))
		*errp = err
	}
	if rerr := g.Failure(ctx, entity.CodeOf(err), err.Error()); rerr != nil {
		g.logger.Error("failed to report scene failure", zap.Error(rerr))
		*errp = errors.Join(err, rerr)
	}
}

// ReportSetupFailure resolves the task token of an invocation that failed before any scene
// could run. Errors without a code are reported as ConfigurationError.
func ReportSetupFailure(ctx context.Context, reporter port.WorkflowReporter, token string, err error, logger *zap.Logger) error {
	code := entity.CodeConfiguration
	var se *entity.StageError
	if errors.As(err, &se) {
		code = se.Code
	}
	return newReportGuard(reporter, token, logger).Failure(ctx, code, err.Error())
}

// reportContext survives cancellation of the scene so a killed pipeline can still report.
func reportContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
}

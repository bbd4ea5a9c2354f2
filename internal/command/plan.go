package command

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/observability"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

// Step is one side effect of a command. Compensate, when set, undoes Do and is only
// called after Do succeeded and a later step failed.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Plan is an ordered list of steps executed as one command.
type Plan struct {
	Name  string
	Steps []Step
}

// Runner executes plans.
type Runner struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRunner builds a runner.
func NewRunner(logger *zap.Logger, metrics *observability.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, metrics: metrics}
}

// Run executes the steps in order and stops at the first failure. Completed steps are then
// compensated in reverse order on a best-effort basis; compensation failures are logged and
// never replace the original error.
//
// The first step is the primary mutation and its error is returned as classified by the
// adapter. A later step fails after the primary mutation committed, so its error surfaces
// as INTERNAL.
func (r *Runner) Run(ctx context.Context, plan Plan) error {
	for i, step := range plan.Steps {
		stepCtx, span := observability.StartSpan(ctx, plan.Name+"."+step.Name)
		err := step.Do(stepCtx)
		observability.SetError(span, err)
		span.End()

		if err == nil {
			continue
		}

		r.logger.Warn("command step failed",
			zap.String("command", plan.Name),
			zap.String("step", step.Name),
			zap.Int("index", i),
			zap.Error(err))

		r.compensate(ctx, plan, i)

		if i == 0 {
			return err
		}
		return apperrors.NewInternal(fmt.Sprintf("failed to %s", humanize(step.Name)), err)
	}
	return nil
}

func (r *Runner) compensate(ctx context.Context, plan Plan, failed int) {
	// compensations must run even when the request context is already cancelled
	ctx = context.WithoutCancel(ctx)

	for i := failed - 1; i >= 0; i-- {
		step := plan.Steps[i]
		if step.Compensate == nil {
			continue
		}

		compCtx, span := observability.StartSpan(ctx, plan.Name+"."+step.Name+".compensate")
		err := step.Compensate(compCtx)
		observability.SetError(span, err)
		span.End()

		r.metrics.RecordCompensation(step.Name, err)
		if err != nil {
			r.logger.Error("compensation failed",
				zap.String("command", plan.Name),
				zap.String("step", step.Name),
				zap.Error(err))
			continue
		}
		r.logger.Info("compensation applied",
			zap.String("command", plan.Name),
			zap.String("step", step.Name))
	}
}

func humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

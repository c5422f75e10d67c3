package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/common"
)

// Observer is told when stages start and finish. It cannot change the
// outcome of a run; panics inside an observer are swallowed.
type Observer interface {
	StageStarted(ctx context.Context, stage string)
	StageFinished(ctx context.Context, stage string, status constants.StepStatus, elapsed time.Duration)
}

// LogObserver writes stage events to a slog.Logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o LogObserver) StageStarted(ctx context.Context, stage string) {
	o.logger().Debug("pipeline.stage.start",
		"req_id", common.RequestIDFromContext(ctx),
		"stage", stage,
	)
}

func (o LogObserver) StageFinished(ctx context.Context, stage string, status constants.StepStatus, elapsed time.Duration) {
	level := slog.LevelInfo
	if status == constants.StepFailed {
		level = slog.LevelWarn
	}
	o.logger().Log(ctx, level, "pipeline.stage.end",
		"req_id", common.RequestIDFromContext(ctx),
		"stage", stage,
		"status", string(status),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

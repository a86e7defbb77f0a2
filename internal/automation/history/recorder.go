package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradepilot/internal/automation/notify"
	"tradepilot/internal/server/dao"
	"tradepilot/internal/server/model"
	"tradepilot/pkg/flow"
)

// RunPublisher receives every recorded run.
type RunPublisher interface {
	PublishRun(ctx context.Context, event notify.RunEvent) error
}

// Recorder appends run outcomes to the pipeline record and updates its counters
// and status in one transaction.
type Recorder struct {
	pipelines dao.PipelineDao
	publisher RunPublisher
	logger    *zap.Logger
}

func NewRecorder(pipelines dao.PipelineDao, publisher RunPublisher, logger *zap.Logger) *Recorder {
	return &Recorder{pipelines: pipelines, publisher: publisher, logger: logger.Named("history")}
}

func SuccessEntry(at time.Time, result *flow.RunResult) flow.HistoryEntry {
	return flow.HistoryEntry{Timestamp: at, Status: flow.RunSuccess, Result: result}
}

func FailureEntry(at time.Time, runErr error, partial *flow.RunResult) flow.HistoryEntry {
	return flow.HistoryEntry{Timestamp: at, Status: flow.RunError, Result: partial, Error: runErr.Error()}
}

// Success records a run whose per-event and per-action failures were contained.
// A pipeline in error status returns to active. A quiet run, where no event
// triggered and none failed to evaluate, only bumps the counters.
func (r *Recorder) Success(ctx context.Context, pipelineID string, at time.Time, result *flow.RunResult, triggered map[string]time.Time, next *time.Time) (*model.Pipeline, error) {
	return r.record(ctx, pipelineID, dao.RunRecord{
		Entry:     SuccessEntry(at, result),
		Status:    flow.StatusActive,
		Triggered: triggered,
		NextRun:   next,
		SkipEntry: result.Empty(),
	})
}

// Failure records a run that could not complete and marks the pipeline as errored.
// Partial results gathered before the failure are kept.
func (r *Recorder) Failure(ctx context.Context, pipelineID string, at time.Time, runErr error, partial *flow.RunResult, next *time.Time) (*model.Pipeline, error) {
	return r.record(ctx, pipelineID, dao.RunRecord{
		Entry:   FailureEntry(at, runErr, partial),
		Status:  flow.StatusError,
		NextRun: next,
	})
}

func (r *Recorder) record(ctx context.Context, pipelineID string, run dao.RunRecord) (*model.Pipeline, error) {
	pipeline, err := r.pipelines.RecordRun(ctx, pipelineID, run)
	if err != nil {
		r.logger.Error("record run failed", zap.String("pipeline_id", pipelineID), zap.Error(err))
		return nil, err
	}
	if run.SkipEntry {
		r.logger.Debug("quiet run", zap.String("pipeline_id", pipelineID), zap.Int64("execution_count", pipeline.ExecutionCount))
		return pipeline, nil
	}
	r.logger.Info("run recorded",
		zap.String("pipeline_id", pipelineID),
		zap.String("status", string(run.Entry.Status)),
		zap.Int64("execution_count", pipeline.ExecutionCount),
	)

	if r.publisher != nil {
		event := notify.RunEvent{PipelineID: pipelineID, OwnerID: pipeline.OwnerID, Entry: run.Entry}
		if err := r.publisher.PublishRun(ctx, event); err != nil {
			r.logger.Warn("publish run event failed", zap.String("pipeline_id", pipelineID), zap.Error(err))
		}
	}
	return pipeline, nil
}

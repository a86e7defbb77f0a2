package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradepilot/internal/automation/planstore"
	"tradepilot/internal/automation/runner"
	"tradepilot/internal/automation/scheduler"
	"tradepilot/internal/common"
	"tradepilot/internal/server/dao"
	"tradepilot/internal/server/model"
	"tradepilot/pkg/flow"
)

// Trigger runs a pipeline once outside its schedule.
type Trigger interface {
	Run(ctx context.Context, pipelineID string) (*flow.HistoryEntry, error)
}

type PipelineService struct {
	pipelines dao.PipelineDao
	scheduler *scheduler.Scheduler
	trigger   Trigger
	plans     planstore.Store
	logger    *zap.Logger
}

func NewPipelineService(pipelines dao.PipelineDao, sched *scheduler.Scheduler, trigger Trigger, plans planstore.Store, logger *zap.Logger) *PipelineService {
	return &PipelineService{
		pipelines: pipelines,
		scheduler: sched,
		trigger:   trigger,
		plans:     plans,
		logger:    logger.Named("pipeline_service"),
	}
}

// Create validates and stores the pipeline, then binds its recurring job.
// A pipeline that cannot be scheduled is not kept.
func (s *PipelineService) Create(ctx context.Context, ownerID uint, cfg *flow.PipelineConfig) (*common.CreatePipelineResponse, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, common.WithMsg(common.PipelineInvalid, err.Error())
	}

	pipeline := model.NewPipeline(uuid.NewString(), ownerID, cfg)
	if err := s.pipelines.Create(ctx, pipeline); err != nil {
		return nil, err
	}

	jobID, err := s.scheduler.Schedule(pipeline.ID, cfg)
	if err != nil {
		s.logger.Error("schedule new pipeline failed", zap.String("pipeline_id", pipeline.ID), zap.Error(err))
		if delErr := s.pipelines.Delete(context.WithoutCancel(ctx), pipeline.ID); delErr != nil {
			s.logger.Error("rollback pipeline failed", zap.String("pipeline_id", pipeline.ID), zap.Error(delErr))
		}
		return nil, common.WithMsg(common.PipelineScheduleFail, err.Error())
	}
	if err := s.pipelines.SetJob(ctx, pipeline.ID, jobID, s.next(pipeline.ID)); err != nil {
		return nil, err
	}

	s.logger.Info("pipeline created", zap.String("pipeline_id", pipeline.ID), zap.Uint("owner_id", ownerID), zap.String("job_id", jobID))
	return &common.CreatePipelineResponse{ID: pipeline.ID, JobID: jobID}, nil
}

func (s *PipelineService) List(ctx context.Context, ownerID uint) ([]*model.Pipeline, error) {
	return s.pipelines.ListByOwner(ctx, ownerID)
}

func (s *PipelineService) Get(ctx context.Context, ownerID uint, id string) (*model.Pipeline, error) {
	pipeline, err := s.pipelines.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pipeline.OwnerID != ownerID {
		return nil, common.NewErrNo(common.ForbiddenPipeline)
	}
	return pipeline, nil
}

// Pause keeps the record and its history but stops future firings.
func (s *PipelineService) Pause(ctx context.Context, ownerID uint, id string) error {
	pipeline, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if pipeline.Status == flow.StatusPaused {
		return common.NewErrNo(common.PipelinePaused)
	}

	jobID := pipeline.Metadata.Data().JobID
	if err := s.scheduler.Pause(jobID); err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
		return common.WithMsg(common.PipelineScheduleFail, err.Error())
	}
	if err := s.pipelines.UpdateStatus(ctx, id, flow.StatusPaused); err != nil {
		return err
	}
	if err := s.pipelines.SetJob(ctx, id, jobID, nil); err != nil {
		return err
	}
	s.logger.Info("pipeline paused", zap.String("pipeline_id", id))
	return nil
}

// Resume re-registers the paused job. When the scheduler no longer knows the
// job, e.g. after a restart, a new job is scheduled from the stored definition.
func (s *PipelineService) Resume(ctx context.Context, ownerID uint, id string) (string, error) {
	pipeline, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if pipeline.Status != flow.StatusPaused {
		return "", common.NewErrNo(common.PipelineNotPaused)
	}

	jobID := pipeline.Metadata.Data().JobID
	err = s.scheduler.Resume(jobID)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		jobID, err = s.scheduler.Schedule(id, pipeline.Definition())
	}
	if err != nil {
		return "", common.WithMsg(common.PipelineScheduleFail, err.Error())
	}

	if err := s.pipelines.UpdateStatus(ctx, id, flow.StatusActive); err != nil {
		return "", err
	}
	if err := s.pipelines.SetJob(ctx, id, jobID, s.next(id)); err != nil {
		return "", err
	}
	s.logger.Info("pipeline resumed", zap.String("pipeline_id", id), zap.String("job_id", jobID))
	return jobID, nil
}

// Delete cancels the job and removes the record with its stored plans.
func (s *PipelineService) Delete(ctx context.Context, ownerID uint, id string) error {
	pipeline, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	err = s.scheduler.Cancel(pipeline.Metadata.Data().JobID)
	if err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
		return common.WithMsg(common.PipelineScheduleFail, err.Error())
	}
	if err := s.pipelines.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		s.logger.Warn("delete strategy plans failed", zap.String("pipeline_id", id), zap.Error(err))
	}
	s.logger.Info("pipeline deleted", zap.String("pipeline_id", id))
	return nil
}

// Run evaluates the pipeline immediately and returns the recorded history entry.
func (s *PipelineService) Run(ctx context.Context, ownerID uint, id string) (*flow.HistoryEntry, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.RunByID(ctx, id)
}

// RunByID is Run without the owner check, for signed webhook calls.
func (s *PipelineService) RunByID(ctx context.Context, id string) (*flow.HistoryEntry, error) {
	entry, err := s.trigger.Run(ctx, id)
	switch {
	case errors.Is(err, runner.ErrBusy):
		return nil, common.NewErrNo(common.PipelineRunning)
	case errors.Is(err, runner.ErrNotRunnable):
		return nil, common.NewErrNo(common.PipelinePaused)
	}
	if entry == nil && err != nil {
		return nil, err
	}
	// 运行失败也已写入历史，直接返回该条记录
	return entry, nil
}

// History returns the newest entries first, at most limit when limit > 0.
func (s *PipelineService) History(ctx context.Context, ownerID uint, id string, limit int) ([]flow.HistoryEntry, error) {
	pipeline, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	entries := pipeline.Metadata.Data().ExecutionHistory
	newest := make([]flow.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(newest) == limit {
			break
		}
		newest = append(newest, entries[i])
	}
	return newest, nil
}

func (s *PipelineService) Plans(ctx context.Context, ownerID uint, id string) ([]planstore.Record, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	records, err := s.plans.List(ctx, id)
	if err != nil {
		s.logger.Error("list strategy plans failed", zap.String("pipeline_id", id), zap.Error(err))
		return nil, common.NewErrNo(common.GetPlansFail)
	}
	return records, nil
}

// LoadAllSchedules re-binds a job for every runnable pipeline; used at startup.
func (s *PipelineService) LoadAllSchedules(ctx context.Context) error {
	pipelines, err := s.pipelines.ListRunnable(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, p := range pipelines {
		jobID, err := s.scheduler.Schedule(p.ID, p.Definition())
		if err != nil {
			failed++
			s.logger.Error("reload schedule failed", zap.String("pipeline_id", p.ID), zap.Error(err))
			continue
		}
		if err := s.pipelines.SetJob(ctx, p.ID, jobID, s.next(p.ID)); err != nil {
			s.logger.Warn("store job id failed", zap.String("pipeline_id", p.ID), zap.Error(err))
		}
	}
	s.logger.Info("schedules loaded", zap.Int("count", len(pipelines)-failed), zap.Int("failed", failed))
	return nil
}

func (s *PipelineService) next(pipelineID string) *time.Time {
	at, ok := s.scheduler.NextRun(pipelineID)
	if !ok {
		return nil
	}
	return &at
}

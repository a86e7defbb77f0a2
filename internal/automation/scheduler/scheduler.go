package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradepilot/pkg/flow"
)

const DefaultInterval = 5 * time.Minute

var ErrJobNotFound = errors.New("scheduled job not found")

// FireFunc is invoked on every firing of a pipeline's job.
type FireFunc func(ctx context.Context, pipelineID string)

// Backend owns the actual timers. Entry ids are backend specific.
type Backend interface {
	Register(interval time.Duration, pipelineID string) (entryID string, err error)
	Unregister(entryID string) error
	Next(entryID string) (time.Time, bool)
	Start() error
	Stop()
}

// Job 是一条流水线的周期任务
type Job struct {
	ID         string
	PipelineID string
	Interval   time.Duration
	Paused     bool
	// Definition is the snapshot given at schedule time; runs always reload the record.
	Definition *flow.PipelineConfig

	entryID string
}

// Scheduler 管理所有流水线的周期任务，每条流水线最多一个任务
type Scheduler struct {
	backend  Backend
	interval time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	jobs       map[string]*Job   // job ID -> job
	byPipeline map[string]string // pipeline ID -> job ID
}

func New(backend Backend, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		backend:    backend,
		interval:   interval,
		logger:     logger.Named("scheduler"),
		jobs:       make(map[string]*Job),
		byPipeline: make(map[string]string),
	}
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.Duration("interval", s.interval))
	return s.backend.Start()
}

func (s *Scheduler) Stop() {
	s.backend.Stop()
}

// Schedule binds a recurring job to the pipeline. Scheduling the same pipeline
// again replaces the previous job.
func (s *Scheduler) Schedule(pipelineID string, def *flow.PipelineConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 先移除已有的调度
	if jobID, exists := s.byPipeline[pipelineID]; exists {
		if err := s.removeLocked(jobID); err != nil {
			return "", fmt.Errorf("replace job %s: %w", jobID, err)
		}
		s.logger.Info("replaced existing job", zap.String("pipeline_id", pipelineID), zap.String("job_id", jobID))
	}

	entryID, err := s.backend.Register(s.interval, pipelineID)
	if err != nil {
		s.logger.Error("schedule pipeline failed", zap.String("pipeline_id", pipelineID), zap.Error(err))
		return "", fmt.Errorf("schedule pipeline %s: %w", pipelineID, err)
	}

	job := &Job{
		ID:         uuid.NewString(),
		PipelineID: pipelineID,
		Interval:   s.interval,
		Definition: def,
		entryID:    entryID,
	}
	s.jobs[job.ID] = job
	s.byPipeline[pipelineID] = job.ID
	s.logger.Info("scheduled pipeline", zap.String("pipeline_id", pipelineID), zap.String("job_id", job.ID))
	return job.ID, nil
}

// Pause stops future firings and keeps the job so it can be resumed.
func (s *Scheduler) Pause(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Paused {
		return nil
	}
	if err := s.backend.Unregister(job.entryID); err != nil {
		return fmt.Errorf("pause job %s: %w", jobID, err)
	}
	job.Paused = true
	job.entryID = ""
	s.logger.Info("paused job", zap.String("pipeline_id", job.PipelineID), zap.String("job_id", jobID))
	return nil
}

// Resume re-registers a paused job under the same job id.
func (s *Scheduler) Resume(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if !job.Paused {
		return nil
	}
	entryID, err := s.backend.Register(job.Interval, job.PipelineID)
	if err != nil {
		return fmt.Errorf("resume job %s: %w", jobID, err)
	}
	job.entryID = entryID
	job.Paused = false
	s.logger.Info("resumed job", zap.String("pipeline_id", job.PipelineID), zap.String("job_id", jobID))
	return nil
}

// Cancel stops the job and forgets it.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	if err := s.removeLocked(jobID); err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	s.logger.Info("cancelled job", zap.String("job_id", jobID))
	return nil
}

func (s *Scheduler) removeLocked(jobID string) error {
	job := s.jobs[jobID]
	if !job.Paused {
		if err := s.backend.Unregister(job.entryID); err != nil {
			return err
		}
	}
	delete(s.jobs, jobID)
	if s.byPipeline[job.PipelineID] == jobID {
		delete(s.byPipeline, job.PipelineID)
	}
	return nil
}

// Job returns a copy of the job.
func (s *Scheduler) Job(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// NextRun reports the next firing of the pipeline's job.
func (s *Scheduler) NextRun(pipelineID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobID, ok := s.byPipeline[pipelineID]
	if !ok {
		return time.Time{}, false
	}
	job := s.jobs[jobID]
	if job.Paused {
		return time.Time{}, false
	}
	return s.backend.Next(job.entryID)
}

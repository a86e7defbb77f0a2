package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradepilot/internal/automation/action"
	"tradepilot/internal/automation/agent"
	"tradepilot/internal/automation/condition"
	"tradepilot/internal/automation/history"
	"tradepilot/internal/automation/lease"
	"tradepilot/internal/automation/market"
	"tradepilot/internal/common"
	"tradepilot/internal/server/dao"
	"tradepilot/internal/server/model"
	"tradepilot/pkg/flow"
)

var (
	// ErrBusy 表示同一流水线已有运行在进行，本次触发被跳过
	ErrBusy = errors.New("pipeline run already in progress")
	// ErrNotRunnable 表示流水线处于暂停状态
	ErrNotRunnable = errors.New("pipeline is not runnable")
)

type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateExecuting  State = "executing"
	StateRecorded   State = "recorded"
)

// PriceHistory 提供历史价格并记录新观测到的价格
type PriceHistory interface {
	Record(ctx context.Context, token string, price float64, source string) error
	Previous(ctx context.Context, token string) (float64, bool, error)
}

type Options struct {
	Pipelines  dao.PipelineDao
	Conditions *condition.Registry
	Actions    *action.Registry
	Recorder   *history.Recorder
	Agent      agent.Agent
	Prices     PriceHistory
	Market     market.Provider
	Locker     lease.Locker
	LeaseTTL   time.Duration
	// Concurrency bounds parallel actions of one event.
	Concurrency int
	// NextRun reports the next scheduled firing of a pipeline, if known.
	NextRun func(pipelineID string) (time.Time, bool)
	Now     func() time.Time
	Logger  *zap.Logger
}

// Runner 执行单条流水线的一次评估：逐个评估事件，满足条件时执行相连的动作，最后写入执行历史
type Runner struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 10 * time.Minute
	}
	if opts.Locker == nil {
		opts.Locker = lease.NewMemoryLocker()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts, logger: opts.Logger.Named("runner")}
}

// run 是一次运行的上下文
type run struct {
	pipelineID string
	startedAt  time.Time
	state      State
	result     *flow.RunResult
	triggered  map[string]time.Time
	logger     *zap.Logger
}

func (r *run) transition(s State) {
	r.logger.Debug("run state", zap.String("from", string(r.state)), zap.String("to", string(s)))
	r.state = s
}

// Run evaluates the pipeline once. Failures inside a run are recorded in the
// pipeline history; the returned error is only for callers that want to know
// whether a run happened.
func (r *Runner) Run(ctx context.Context, pipelineID string) (*flow.HistoryEntry, error) {
	rn := &run{
		pipelineID: pipelineID,
		startedAt:  r.opts.Now(),
		state:      StateIdle,
		result:     &flow.RunResult{TriggeredEvents: []string{}, Actions: []flow.ActionResult{}},
		triggered:  make(map[string]time.Time),
		logger:     r.logger.With(zap.String("pipeline_id", pipelineID)),
	}

	token, err := r.opts.Locker.Acquire(ctx, pipelineID, r.opts.LeaseTTL)
	if errors.Is(err, lease.ErrNotAcquired) {
		rn.logger.Info("skip run, previous run still in progress")
		return nil, ErrBusy
	}
	if err != nil {
		return r.fail(ctx, rn, fmt.Errorf("acquire lease: %w", err))
	}
	defer func() {
		if err := r.opts.Locker.Release(context.WithoutCancel(ctx), pipelineID, token); err != nil {
			rn.logger.Warn("release lease failed", zap.Error(err))
		}
	}()

	pipeline, err := r.opts.Pipelines.Get(ctx, pipelineID)
	if err != nil {
		var errNo common.ErrNo
		if errors.As(err, &errNo) && errNo.ErrCode == common.PipelineNotExists {
			return nil, err
		}
		return r.fail(ctx, rn, fmt.Errorf("load pipeline: %w", err))
	}
	if !pipeline.Runnable() {
		rn.logger.Info("skip run", zap.String("status", string(pipeline.Status)))
		return nil, ErrNotRunnable
	}

	if err := r.evaluate(ctx, rn, pipeline); err != nil {
		return r.fail(ctx, rn, err)
	}

	rn.transition(StateRecorded)
	if _, err := r.opts.Recorder.Success(ctx, pipelineID, rn.startedAt, rn.result, rn.triggered, r.nextRun(pipelineID)); err != nil {
		return nil, err
	}
	entry := history.SuccessEntry(rn.startedAt, rn.result)
	return &entry, nil
}

// evaluate walks the events in declared order. A panic here escapes the
// per-event and per-action isolation and fails the whole run.
func (r *Runner) evaluate(ctx context.Context, rn *run, pipeline *model.Pipeline) (err error) {
	defer func() {
		if p := recover(); p != nil {
			rn.logger.Error("run panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("run panicked: %v", p)
		}
	}()

	def := pipeline.Definition()
	acc := newAccessors(r.opts, rn, pipeline.Metadata.Data().TriggerState)

	for _, event := range def.Events {
		if err := ctx.Err(); err != nil {
			return err
		}
		rn.transition(StateEvaluating)
		ok, err := r.check(ctx, event, acc)
		if err != nil {
			rn.logger.Warn("event evaluation failed, treated as not met",
				zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)), zap.Error(err))
			rn.result.EvaluationErrors = append(rn.result.EvaluationErrors, flow.EvaluationError{EventID: event.ID, Error: err.Error()})
			continue
		}
		if !ok {
			continue
		}

		rn.result.TriggeredEvents = append(rn.result.TriggeredEvents, event.ID)
		rn.triggered[event.ID] = rn.startedAt

		rn.transition(StateExecuting)
		actions := flow.ActionsFor(def.Actions, def.Connections, event.ID)
		rn.result.Actions = append(rn.result.Actions, r.execute(ctx, rn, event.ID, actions, def.ExecutionMode)...)
	}
	return nil
}

func (r *Runner) check(ctx context.Context, event flow.Event, acc condition.Accessors) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("evaluator panicked: %v", p)
		}
	}()
	return r.opts.Conditions.Evaluate(ctx, event, acc)
}

// execute 执行一个事件的所有动作，结果保持声明顺序
func (r *Runner) execute(ctx context.Context, rn *run, eventID string, actions []flow.Action, mode flow.ExecutionMode) []flow.ActionResult {
	results := make([]flow.ActionResult, len(actions))
	if mode != flow.ModeParallel || len(actions) < 2 {
		for i, a := range actions {
			results[i] = r.executeOne(ctx, rn, eventID, a)
		}
		return results
	}

	semaphore := make(chan struct{}, r.opts.Concurrency)
	var wg sync.WaitGroup
	for i, a := range actions {
		semaphore <- struct{}{}
		wg.Add(1)
		go func(i int, a flow.Action) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i] = r.executeOne(ctx, rn, eventID, a)
		}(i, a)
	}
	wg.Wait()
	return results
}

func (r *Runner) executeOne(ctx context.Context, rn *run, eventID string, a flow.Action) (res flow.ActionResult) {
	res = flow.ActionResult{EventID: eventID, ActionID: a.ID, ActionType: a.Type, Status: flow.RunSuccess}
	logger := rn.logger.With(zap.String("action_id", a.ID), zap.String("action_type", string(a.Type)))

	defer func() {
		if p := recover(); p != nil {
			logger.Error("action panicked", zap.Any("panic", p))
			res.Status = flow.RunError
			res.Error = fmt.Sprintf("action panicked: %v", p)
		}
	}()

	output, err := r.opts.Actions.Execute(ctx, action.Request{PipelineID: rn.pipelineID, EventID: eventID, Action: a})
	res.Output = output
	if err != nil {
		logger.Warn("action failed", zap.Error(err))
		res.Status = flow.RunError
		res.Error = err.Error()
		return res
	}
	logger.Info("action executed")
	return res
}

func (r *Runner) fail(ctx context.Context, rn *run, runErr error) (*flow.HistoryEntry, error) {
	rn.logger.Error("run failed", zap.String("state", string(rn.state)), zap.Error(runErr))
	if _, err := r.opts.Recorder.Failure(context.WithoutCancel(ctx), rn.pipelineID, rn.startedAt, runErr, rn.result, r.nextRun(rn.pipelineID)); err != nil {
		return nil, errors.Join(runErr, err)
	}
	entry := history.FailureEntry(rn.startedAt, runErr, rn.result)
	return &entry, runErr
}

func (r *Runner) nextRun(pipelineID string) *time.Time {
	if r.opts.NextRun == nil {
		return nil
	}
	if next, ok := r.opts.NextRun(pipelineID); ok {
		return &next
	}
	return nil
}

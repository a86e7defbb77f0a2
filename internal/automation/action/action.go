package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradepilot/internal/automation/agent"
	"tradepilot/internal/automation/market"
	"tradepilot/internal/automation/notify"
	"tradepilot/internal/automation/planstore"
	"tradepilot/pkg/flow"
)

var ErrUnknownType = errors.New("unknown action type")

// Request is one action to perform on behalf of a pipeline run.
type Request struct {
	PipelineID string
	EventID    string
	Action     flow.Action
}

// Executor performs one action. The output is recorded in the run result even
// when err is set.
type Executor interface {
	Execute(ctx context.Context, req Request) (output any, err error)
}

type ExecutorFunc func(ctx context.Context, req Request) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

type Registry struct {
	executors map[flow.ActionType]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[flow.ActionType]Executor)}
}

// Deps are the collaborators of the built-in executors.
type Deps struct {
	Agent  agent.Agent
	Sink   notify.Sink
	Market market.Provider
	Plans  planstore.Store
	Now    func() time.Time
}

func NewDefaultRegistry(d Deps) *Registry {
	if d.Now == nil {
		d.Now = time.Now
	}
	r := NewRegistry()
	r.Register(flow.ActionTransfer, &Transfer{agent: d.Agent})
	r.Register(flow.ActionSwap, &Swap{agent: d.Agent})
	r.Register(flow.ActionStake, &Stake{agent: d.Agent})
	r.Register(flow.ActionNotification, &Notification{sink: d.Sink, now: d.Now})
	r.Register(flow.ActionStrategy, &Strategy{agent: d.Agent, market: d.Market, plans: d.Plans, now: d.Now})
	return r
}

func (r *Registry) Register(t flow.ActionType, e Executor) {
	r.executors[t] = e
}

func (r *Registry) Execute(ctx context.Context, req Request) (any, error) {
	e, ok := r.executors[req.Action.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Action.Type)
	}
	return e.Execute(ctx, req)
}

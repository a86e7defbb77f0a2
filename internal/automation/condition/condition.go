package condition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradepilot/internal/automation/market"
	"tradepilot/pkg/flow"
)

var ErrUnknownType = errors.New("unknown event type")

// Accessors exposes the external state a trigger condition is checked against.
type Accessors interface {
	CurrentPrice(ctx context.Context, token string) (float64, error)
	// PreviousPrice reports ok=false when no earlier sample exists.
	PreviousPrice(ctx context.Context, token string) (price float64, ok bool, err error)
	Balance(ctx context.Context, token string) (float64, error)
	Market(ctx context.Context, token string) (market.Snapshot, error)
	Now() time.Time
	// LastTriggered is the zero time when the event never fired.
	LastTriggered(eventID string) time.Time
}

type Evaluator interface {
	Evaluate(ctx context.Context, event flow.Event, acc Accessors) (bool, error)
}

type EvaluatorFunc func(ctx context.Context, event flow.Event, acc Accessors) (bool, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, event flow.Event, acc Accessors) (bool, error) {
	return f(ctx, event, acc)
}

// Registry dispatches an event to the evaluator registered for its type.
type Registry struct {
	evaluators map[flow.EventType]Evaluator
}

func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[flow.EventType]Evaluator)}
}

// NewDefaultRegistry registers the built-in event types. window is the
// tolerance of time_schedule triggers and should match the scheduling interval.
func NewDefaultRegistry(window time.Duration) *Registry {
	r := NewRegistry()
	r.Register(flow.EventPriceChange, EvaluatorFunc(PriceChange))
	r.Register(flow.EventWalletBalance, EvaluatorFunc(WalletBalance))
	r.Register(flow.EventTimeSchedule, TimeSchedule{Window: window})
	r.Register(flow.EventMarketCondition, EvaluatorFunc(MarketCondition))
	return r
}

func (r *Registry) Register(t flow.EventType, e Evaluator) {
	r.evaluators[t] = e
}

func (r *Registry) Supports(t flow.EventType) bool {
	_, ok := r.evaluators[t]
	return ok
}

func (r *Registry) Evaluate(ctx context.Context, event flow.Event, acc Accessors) (bool, error) {
	e, ok := r.evaluators[event.Type]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownType, event.Type)
	}
	return e.Evaluate(ctx, event, acc)
}

package flow

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// task type used by the distributed scheduler backend
const PIPELINE_RUN = "pipeline:run"

type EventType string

const (
	EventPriceChange     EventType = "price_change"
	EventWalletBalance   EventType = "wallet_balance"
	EventTimeSchedule    EventType = "time_schedule"
	EventMarketCondition EventType = "market_condition"
)

type ActionType string

const (
	ActionTransfer     ActionType = "transfer"
	ActionSwap         ActionType = "swap"
	ActionStake        ActionType = "stake"
	ActionNotification ActionType = "notification"
	ActionStrategy     ActionType = "strategy"
)

type PipelineStatus string

const (
	StatusActive PipelineStatus = "active"
	StatusPaused PipelineStatus = "paused"
	StatusError  PipelineStatus = "error"
)

// ExecutionMode controls how the actions of one satisfied event are run.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

type Event struct {
	ID     string    `json:"id" yaml:"id"`
	Name   string    `json:"name" yaml:"name"`
	Type   EventType `json:"type" yaml:"type"`
	Config Config    `json:"config" yaml:"config"`
}

type Action struct {
	ID     string     `json:"id" yaml:"id"`
	Name   string     `json:"name" yaml:"name"`
	Type   ActionType `json:"type" yaml:"type"`
	Config Config     `json:"config" yaml:"config"`
}

// Connection is a directed edge from an event to an action.
type Connection struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

type PipelineConfig struct {
	Name          string        `json:"name" yaml:"name"`
	ExecutionMode ExecutionMode `json:"execution_mode,omitempty" yaml:"execution_mode,omitempty"`
	Events        []Event       `json:"events" yaml:"events"`
	Actions       []Action      `json:"actions" yaml:"actions"`
	Connections   []Connection  `json:"connections" yaml:"connections"`
}

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// HistoryEntry is one immutable line of a pipeline's execution history.
type HistoryEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type RunResult struct {
	TriggeredEvents  []string          `json:"triggered_events"`
	Actions          []ActionResult    `json:"actions"`
	EvaluationErrors []EvaluationError `json:"evaluation_errors,omitempty"`
}

// Empty reports whether nothing triggered, ran or failed to evaluate.
func (r *RunResult) Empty() bool {
	return r == nil || (len(r.TriggeredEvents) == 0 && len(r.Actions) == 0 && len(r.EvaluationErrors) == 0)
}

// EvaluationError is an event whose condition could not be checked; it counts as not met.
type EvaluationError struct {
	EventID string `json:"event_id"`
	Error   string `json:"error"`
}

type ActionResult struct {
	EventID    string     `json:"event_id"`
	ActionID   string     `json:"action_id"`
	ActionType ActionType `json:"action_type"`
	Status     RunStatus  `json:"status"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunPayload is the body of a PIPELINE_RUN task.
type RunPayload struct {
	PipelineID string `json:"pipeline_id"`
}

// ParsePipelineConfig accepts YAML or JSON, JSON being a subset of YAML.
func ParsePipelineConfig(content []byte) (*PipelineConfig, error) {
	var config PipelineConfig
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, err
	}
	config.Normalize()
	return &config, nil
}

// Normalize fills defaults and trims ids, so connections resolve at run time
// exactly as they did when validated.
func (p *PipelineConfig) Normalize() {
	if p.ExecutionMode == "" {
		p.ExecutionMode = ModeSequential
	}
	for i := range p.Events {
		p.Events[i].ID = strings.TrimSpace(p.Events[i].ID)
		if p.Events[i].Config == nil {
			p.Events[i].Config = Config{}
		}
	}
	for i := range p.Actions {
		p.Actions[i].ID = strings.TrimSpace(p.Actions[i].ID)
		if p.Actions[i].Config == nil {
			p.Actions[i].Config = Config{}
		}
	}
	for i := range p.Connections {
		p.Connections[i].From = strings.TrimSpace(p.Connections[i].From)
		p.Connections[i].To = strings.TrimSpace(p.Connections[i].To)
	}
}

// ActionsFor returns the actions connected to eventID, in declared action order.
func ActionsFor(actions []Action, connections []Connection, eventID string) []Action {
	targets := make(map[string]struct{})
	for _, conn := range connections {
		if conn.From == eventID {
			targets[conn.To] = struct{}{}
		}
	}
	var connected []Action
	for _, action := range actions {
		if _, ok := targets[action.ID]; ok {
			connected = append(connected, action)
		}
	}
	return connected
}

package flow

import (
	"fmt"
	"strings"
)

var knownEvents = map[EventType]struct{}{
	EventPriceChange:     {},
	EventWalletBalance:   {},
	EventTimeSchedule:    {},
	EventMarketCondition: {},
}

var knownActions = map[ActionType]struct{}{
	ActionTransfer:     {},
	ActionSwap:         {},
	ActionStake:        {},
	ActionNotification: {},
	ActionStrategy:     {},
}

// Validate checks the definition shape and that every connection references an
// event and an action of this pipeline.
func (p *PipelineConfig) Validate() error {
	issues := &ValidationError{}

	if strings.TrimSpace(p.Name) == "" {
		issues.Add("name is required")
	}
	if len(p.Events) == 0 {
		issues.Add("at least one event is required")
	}
	switch p.ExecutionMode {
	case "", ModeSequential, ModeParallel:
	default:
		issues.Add(fmt.Sprintf("unknown execution_mode %q", p.ExecutionMode))
	}

	eventIDs := make(map[string]struct{}, len(p.Events))
	for i, event := range p.Events {
		id := strings.TrimSpace(event.ID)
		if id == "" {
			issues.Add(fmt.Sprintf("event[%d] id is required", i))
			continue
		}
		if _, exists := eventIDs[id]; exists {
			issues.Add(fmt.Sprintf("duplicate event id %q", id))
		}
		eventIDs[id] = struct{}{}
		if _, ok := knownEvents[event.Type]; !ok {
			issues.Add(fmt.Sprintf("event[%s] has unknown type %q", id, event.Type))
		}
	}

	actionIDs := make(map[string]struct{}, len(p.Actions))
	for i, action := range p.Actions {
		id := strings.TrimSpace(action.ID)
		if id == "" {
			issues.Add(fmt.Sprintf("action[%d] id is required", i))
			continue
		}
		if _, exists := actionIDs[id]; exists {
			issues.Add(fmt.Sprintf("duplicate action id %q", id))
		}
		actionIDs[id] = struct{}{}
		if _, ok := knownActions[action.Type]; !ok {
			issues.Add(fmt.Sprintf("action[%s] has unknown type %q", id, action.Type))
		}
	}

	for i, conn := range p.Connections {
		if _, ok := eventIDs[strings.TrimSpace(conn.From)]; !ok {
			issues.Add(fmt.Sprintf("connection[%d] from %q is not an event of this pipeline", i, conn.From))
		}
		if _, ok := actionIDs[strings.TrimSpace(conn.To)]; !ok {
			issues.Add(fmt.Sprintf("connection[%d] to %q is not an action of this pipeline", i, conn.To))
		}
	}

	return issues.OrNil()
}

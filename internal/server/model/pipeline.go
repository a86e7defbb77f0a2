package model

import (
	"time"

	"gorm.io/datatypes"

	"tradepilot/pkg/flow"
)

// Pipeline is the persisted automation record. Definition parts and metadata
// are stored as JSON columns so the record reloads exactly as it was written.
type Pipeline struct {
	ID             string                               `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name           string                               `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID        uint                                 `gorm:"not null;index" json:"owner_id"`
	Status         flow.PipelineStatus                  `gorm:"type:varchar(16);not null;index" json:"status"`
	ExecutionMode  flow.ExecutionMode                   `gorm:"type:varchar(16);not null;default:'sequential'" json:"execution_mode"`
	Events         datatypes.JSONSlice[flow.Event]      `json:"events"`
	Actions        datatypes.JSONSlice[flow.Action]     `json:"actions"`
	Connections    datatypes.JSONSlice[flow.Connection] `json:"connections"`
	ExecutionCount int64                                `gorm:"not null;default:0" json:"execution_count"`
	LastExecuted   *time.Time                           `json:"last_executed"`
	Metadata       datatypes.JSONType[Metadata]         `json:"metadata"`
	CreatedAt      time.Time                            `json:"created_at"`
	UpdatedAt      time.Time                            `json:"updated_at"`
}

type Metadata struct {
	JobID            string              `json:"job_id"`
	NextExecution    *time.Time          `json:"next_execution,omitempty"`
	ExecutionHistory []flow.HistoryEntry `json:"execution_history"`
	// TriggerState holds the last time each event fired.
	TriggerState map[string]time.Time `json:"trigger_state,omitempty"`
}

func NewPipeline(id string, ownerID uint, config *flow.PipelineConfig) *Pipeline {
	return &Pipeline{
		ID:            id,
		Name:          config.Name,
		OwnerID:       ownerID,
		Status:        flow.StatusActive,
		ExecutionMode: config.ExecutionMode,
		Events:        datatypes.NewJSONSlice(config.Events),
		Actions:       datatypes.NewJSONSlice(config.Actions),
		Connections:   datatypes.NewJSONSlice(config.Connections),
		Metadata:      datatypes.NewJSONType(Metadata{ExecutionHistory: []flow.HistoryEntry{}}),
	}
}

// Definition returns the pipeline's events, actions and connections.
func (p *Pipeline) Definition() *flow.PipelineConfig {
	return &flow.PipelineConfig{
		Name:          p.Name,
		ExecutionMode: p.ExecutionMode,
		Events:        []flow.Event(p.Events),
		Actions:       []flow.Action(p.Actions),
		Connections:   []flow.Connection(p.Connections),
	}
}

// Runnable reports whether a scheduled firing should evaluate the pipeline.
func (p *Pipeline) Runnable() bool {
	return p.Status == flow.StatusActive || p.Status == flow.StatusError
}

package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePipeline = `
name: eth dip buyer
events:
  - id: e1
    name: eth drops
    type: price_change
    config:
      token: ETH
      direction: Decrease
      percentage: "5%"
actions:
  - id: a1
    name: buy eth
    type: swap
    config:
      from_token: USDC
      to_token: ETH
      amount: 100
  - id: a2
    name: ping
    type: notification
    config:
      message: bought the dip
connections:
  - from: e1
    to: a2
  - from: e1
    to: a1
`

func TestParsePipelineConfig(t *testing.T) {
	cfg, err := ParsePipelineConfig([]byte(samplePipeline))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeSequential, cfg.ExecutionMode)
	require.Len(t, cfg.Events, 1)
	assert.Equal(t, EventPriceChange, cfg.Events[0].Type)

	var params struct {
		Token      string `json:"token"`
		Percentage Number `json:"percentage"`
	}
	require.NoError(t, cfg.Events[0].Config.Decode(&params))
	assert.Equal(t, "ETH", params.Token)
	assert.Equal(t, 5.0, params.Percentage.Float())
}

func TestParsePipelineConfig_JSON(t *testing.T) {
	cfg, err := ParsePipelineConfig([]byte(`{"name":"p","events":[{"id":"e1","type":"time_schedule","config":{"time":"09:00"}}],"actions":[],"connections":[]}`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "09:00", cfg.Events[0].Config["time"])
}

func TestActionsFor_KeepsDeclaredOrder(t *testing.T) {
	cfg, err := ParsePipelineConfig([]byte(samplePipeline))
	require.NoError(t, err)

	actions := ActionsFor(cfg.Actions, cfg.Connections, "e1")
	require.Len(t, actions, 2)
	assert.Equal(t, "a1", actions[0].ID)
	assert.Equal(t, "a2", actions[1].ID)
	assert.Empty(t, ActionsFor(cfg.Actions, cfg.Connections, "missing"))
}

func TestNormalize_TrimsIDs(t *testing.T) {
	cfg := PipelineConfig{
		Name:        "p",
		Events:      []Event{{ID: " e1", Type: EventWalletBalance}},
		Actions:     []Action{{ID: "a1 ", Type: ActionNotification}},
		Connections: []Connection{{From: "e1", To: " a1"}},
	}
	require.NoError(t, cfg.Validate())

	cfg.Normalize()
	assert.Equal(t, "e1", cfg.Events[0].ID)
	assert.Equal(t, "a1", cfg.Actions[0].ID)
	actions := ActionsFor(cfg.Actions, cfg.Connections, cfg.Events[0].ID)
	require.Len(t, actions, 1)
	assert.Equal(t, "a1", actions[0].ID)
}

func TestValidate(t *testing.T) {
	base := func() PipelineConfig {
		return PipelineConfig{
			Name:    "p",
			Events:  []Event{{ID: "e1", Type: EventWalletBalance}},
			Actions: []Action{{ID: "a1", Type: ActionNotification}},
			Connections: []Connection{
				{From: "e1", To: "a1"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(p *PipelineConfig)
		wantErr string
	}{
		{name: "ok", mutate: func(p *PipelineConfig) {}},
		{name: "dangling event", mutate: func(p *PipelineConfig) {
			p.Connections = append(p.Connections, Connection{From: "e9", To: "a1"})
		}, wantErr: `from "e9"`},
		{name: "dangling action", mutate: func(p *PipelineConfig) {
			p.Connections = append(p.Connections, Connection{From: "e1", To: "a9"})
		}, wantErr: `to "a9"`},
		{name: "unknown event type", mutate: func(p *PipelineConfig) {
			p.Events[0].Type = "moon_phase"
		}, wantErr: "unknown type"},
		{name: "unknown action type", mutate: func(p *PipelineConfig) {
			p.Actions[0].Type = "bridge"
		}, wantErr: "unknown type"},
		{name: "duplicate ids", mutate: func(p *PipelineConfig) {
			p.Actions = append(p.Actions, Action{ID: "a1", Type: ActionSwap})
		}, wantErr: "duplicate action id"},
		{name: "missing name", mutate: func(p *PipelineConfig) {
			p.Name = " "
		}, wantErr: "name is required"},
		{name: "bad mode", mutate: func(p *PipelineConfig) {
			p.ExecutionMode = "eventually"
		}, wantErr: "execution_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
	}
	require.NoError(t, Config{"a": 1.5, "b": "1,000", "c": "12%"}.Decode(&v))
	assert.Equal(t, 1.5, v.A.Float())
	assert.Equal(t, 1000.0, v.B.Float())
	assert.Equal(t, 12.0, v.C.Float())

	require.Error(t, Config{"a": "lots"}.Decode(&v))
}

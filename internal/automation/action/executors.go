package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradepilot/internal/automation/agent"
	"tradepilot/internal/automation/market"
	"tradepilot/internal/automation/notify"
	"tradepilot/internal/automation/planstore"
	"tradepilot/internal/automation/strategy"
	"tradepilot/pkg/flow"
)

type TransferConfig struct {
	Token     string      `json:"token"`
	Amount    flow.Number `json:"amount"`
	Recipient string      `json:"recipient"`
}

type Transfer struct {
	agent agent.Agent
}

func (t *Transfer) Execute(ctx context.Context, req Request) (any, error) {
	var cfg TransferConfig
	if err := req.Action.Config.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Token == "" || cfg.Recipient == "" {
		return nil, errors.New("transfer: token and recipient are required")
	}
	if cfg.Amount <= 0 {
		return nil, errors.New("transfer: amount must be positive")
	}
	return t.agent.Transfer(ctx, cfg.Token, cfg.Amount.Float(), cfg.Recipient)
}

type SwapConfig struct {
	FromToken string      `json:"from_token"`
	ToToken   string      `json:"to_token"`
	Amount    flow.Number `json:"amount"`
}

type Swap struct {
	agent agent.Agent
}

func (s *Swap) Execute(ctx context.Context, req Request) (any, error) {
	var cfg SwapConfig
	if err := req.Action.Config.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.FromToken == "" || cfg.ToToken == "" {
		return nil, errors.New("swap: from_token and to_token are required")
	}
	if cfg.Amount <= 0 {
		return nil, errors.New("swap: amount must be positive")
	}
	return s.agent.Swap(ctx, cfg.FromToken, cfg.ToToken, cfg.Amount.Float())
}

type StakeConfig struct {
	Token     string      `json:"token"`
	Amount    flow.Number `json:"amount"`
	Validator string      `json:"validator"`
}

type Stake struct {
	agent agent.Agent
}

func (s *Stake) Execute(ctx context.Context, req Request) (any, error) {
	var cfg StakeConfig
	if err := req.Action.Config.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New("stake: token is required")
	}
	if cfg.Amount <= 0 {
		return nil, errors.New("stake: amount must be positive")
	}
	return s.agent.Stake(ctx, cfg.Token, cfg.Amount.Float(), cfg.Validator)
}

type NotificationConfig struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	Level   string `json:"level"`
}

type Ack struct {
	Delivered bool      `json:"delivered"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

type Notification struct {
	sink notify.Sink
	now  func() time.Time
}

func (n *Notification) Execute(ctx context.Context, req Request) (any, error) {
	var cfg NotificationConfig
	if err := req.Action.Config.Decode(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Message) == "" {
		return nil, errors.New("notification: message is required")
	}
	title := cfg.Title
	if title == "" {
		title = req.Action.Name
	}
	level := cfg.Level
	if level == "" {
		level = "info"
	}

	msg := notify.Message{
		PipelineID: req.PipelineID,
		ActionID:   req.Action.ID,
		Title:      title,
		Text:       cfg.Message,
		Level:      level,
		SentAt:     n.now(),
	}
	if n.sink != nil {
		if err := n.sink.Notify(ctx, msg); err != nil {
			return nil, fmt.Errorf("notification: %w", err)
		}
	}
	return Ack{Delivered: true, Message: cfg.Message, SentAt: msg.SentAt}, nil
}

// StrategyOutput is the result of a strategy action.
type StrategyOutput struct {
	Plan       strategy.Plan   `json:"plan"`
	FirstOrder *agent.TxResult `json:"first_order,omitempty"`
}

type Strategy struct {
	agent  agent.Agent
	market market.Provider
	plans  planstore.Store
	now    func() time.Time
}

func (s *Strategy) Execute(ctx context.Context, req Request) (any, error) {
	var cfg strategy.Config
	if err := req.Action.Config.Decode(&cfg); err != nil {
		return nil, err
	}

	var analysis *strategy.Analysis
	var price float64
	if s.market != nil && cfg.Token != "" {
		if snap, err := s.market.Snapshot(ctx, cfg.Token); err == nil {
			a := strategy.Analyze(snap.PriceChange24h, snap.Volume24h)
			analysis = &a
			price = snap.Price
		}
	}
	// a missing price leaves 0 and Build falls back to Balanced DCA
	if analysis != nil && price <= 0 {
		if p, err := s.agent.GetTokenPrice(ctx, cfg.Token); err == nil {
			price = p
		}
	}

	plan, err := strategy.Build(cfg, analysis, price)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	out := StrategyOutput{Plan: plan}

	if s.plans != nil {
		rec := planstore.Record{PipelineID: req.PipelineID, ActionID: req.Action.ID, Plan: plan, CreatedAt: s.now()}
		if err := s.plans.Save(ctx, rec); err != nil {
			return out, fmt.Errorf("strategy: store plan: %w", err)
		}
	}
	if !cfg.ShouldExecute() {
		return out, nil
	}

	order := plan.FirstOrder
	tx, err := s.agent.Swap(ctx, order.FromToken, order.ToToken, order.Amount)
	if err != nil {
		return out, fmt.Errorf("strategy: first order: %w", err)
	}
	out.FirstOrder = &tx
	return out, nil
}

package condition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"tradepilot/internal/automation/market"
	"tradepilot/internal/automation/strategy"
	"tradepilot/pkg/flow"
)

type PriceChangeConfig struct {
	Token      string      `json:"token"`
	Direction  string      `json:"direction"`
	Percentage flow.Number `json:"percentage"`
}

// PriceChange compares the current price with the previous sample.
// A missing previous sample means the condition cannot hold yet.
func PriceChange(ctx context.Context, event flow.Event, acc Accessors) (bool, error) {
	var cfg PriceChangeConfig
	if err := event.Config.Decode(&cfg); err != nil {
		return false, err
	}
	if cfg.Token == "" {
		return false, errors.New("price_change: token is required")
	}

	// current first: observing it is what builds the history
	current, err := acc.CurrentPrice(ctx, cfg.Token)
	if err != nil {
		return false, fmt.Errorf("current price of %s: %w", cfg.Token, err)
	}
	previous, ok, err := acc.PreviousPrice(ctx, cfg.Token)
	if err != nil {
		return false, fmt.Errorf("previous price of %s: %w", cfg.Token, err)
	}
	if !ok || previous == 0 {
		return false, nil
	}

	change := (current - previous) * 100 / previous
	threshold := cfg.Percentage.Float()
	switch strings.ToLower(cfg.Direction) {
	case "increase":
		return change >= threshold, nil
	case "decrease":
		return change <= -threshold, nil
	case "any", "":
		return math.Abs(change) >= threshold, nil
	}
	return false, fmt.Errorf("price_change: unknown direction %q", cfg.Direction)
}

type WalletBalanceConfig struct {
	Token         string      `json:"token"`
	ThresholdType string      `json:"threshold_type"`
	Amount        flow.Number `json:"amount"`
}

func WalletBalance(ctx context.Context, event flow.Event, acc Accessors) (bool, error) {
	var cfg WalletBalanceConfig
	if err := event.Config.Decode(&cfg); err != nil {
		return false, err
	}
	if cfg.Token == "" {
		return false, errors.New("wallet_balance: token is required")
	}
	balance, err := acc.Balance(ctx, cfg.Token)
	if err != nil {
		return false, fmt.Errorf("balance of %s: %w", cfg.Token, err)
	}

	switch strings.ToLower(cfg.ThresholdType) {
	case "above":
		return balance > cfg.Amount.Float(), nil
	case "below":
		return balance < cfg.Amount.Float(), nil
	}
	return false, fmt.Errorf("wallet_balance: unknown threshold_type %q", cfg.ThresholdType)
}

type TimeScheduleConfig struct {
	Time string `json:"time"`
}

// TimeSchedule fires once per day inside [HH:MM, HH:MM+Window).
type TimeSchedule struct {
	Window time.Duration
}

func (t TimeSchedule) Evaluate(_ context.Context, event flow.Event, acc Accessors) (bool, error) {
	var cfg TimeScheduleConfig
	if err := event.Config.Decode(&cfg); err != nil {
		return false, err
	}
	hour, minute, err := ParseClock(cfg.Time)
	if err != nil {
		return false, err
	}

	window := t.Window
	if window < time.Minute {
		window = time.Minute
	}
	if window > 24*time.Hour {
		window = 24 * time.Hour
	}

	now := acc.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	// a window opened yesterday may still be running after midnight
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	if now.Before(start) || !now.Before(start.Add(window)) {
		return false, nil
	}
	if last := acc.LastTriggered(event.ID); !last.IsZero() && !last.Before(start) {
		return false, nil
	}
	return true, nil
}

// ParseClock parses a 24h "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("time_schedule: invalid time %q, expected HH:MM", s)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

type MarketConditionConfig struct {
	Token     string `json:"token"`
	Indicator string `json:"indicator"`
	Condition string `json:"condition"`
}

// MarketCondition matches a classification of the token's 24h market analysis.
// Without a market snapshot the condition is not met.
func MarketCondition(ctx context.Context, event flow.Event, acc Accessors) (bool, error) {
	var cfg MarketConditionConfig
	if err := event.Config.Decode(&cfg); err != nil {
		return false, err
	}
	if cfg.Token == "" || cfg.Condition == "" {
		return false, errors.New("market_condition: token and condition are required")
	}
	indicator := strings.ToLower(cfg.Indicator)
	if indicator == "" {
		indicator = "trend"
	}

	snap, err := acc.Market(ctx, cfg.Token)
	if errors.Is(err, market.ErrUnavailable) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("market snapshot of %s: %w", cfg.Token, err)
	}

	value, ok := strategy.Analyze(snap.PriceChange24h, snap.Volume24h).Indicator(indicator)
	if !ok {
		return false, fmt.Errorf("market_condition: unknown indicator %q", cfg.Indicator)
	}
	return strings.EqualFold(value, cfg.Condition), nil
}

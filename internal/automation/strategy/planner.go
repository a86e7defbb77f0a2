package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"tradepilot/pkg/flow"
)

type Name string

const (
	NameDCA         Name = "DCA"
	NameMomentum    Name = "Momentum"
	NameGrid        Name = "Grid Trading"
	NameBalancedDCA Name = "Balanced DCA"
)

const (
	defaultQuoteToken = "USDC"
	defaultIntervals  = 30

	dcaDipPercent     = -5.0
	dcaDipMultiplier  = 1.5
	momentumImmediate = 0.6
	momentumStopLoss  = -5.0
	momentumTakeGain  = 15.0
)

// Config is the strategy action's parameter record.
type Config struct {
	Token      string      `json:"token"`
	QuoteToken string      `json:"quote_token"`
	Budget     flow.Number `json:"budget"`
	Duration   string      `json:"duration"`
	// Execute defaults to true when the planner runs as an action.
	Execute *bool `json:"execute"`
}

func (c Config) ShouldExecute() bool {
	return c.Execute == nil || *c.Execute
}

// Order is a market buy of Amount worth of QuoteToken into Token.
type Order struct {
	FromToken string  `json:"from_token"`
	ToToken   string  `json:"to_token"`
	Amount    float64 `json:"amount"`
}

type DCAParams struct {
	Intervals         int     `json:"intervals"`
	Cadence           string  `json:"cadence"`
	AmountPerInterval float64 `json:"amount_per_interval"`
	DipTriggerPercent float64 `json:"dip_trigger_percent"`
	DipMultiplier     float64 `json:"dip_multiplier"`
}

type MomentumParams struct {
	ImmediateAmount   float64 `json:"immediate_amount"`
	ReserveAmount     float64 `json:"reserve_amount"`
	EntryPrice        float64 `json:"entry_price"`
	StopLossPrice     float64 `json:"stop_loss_price"`
	TakeProfitPrice   float64 `json:"take_profit_price"`
	StopLossPercent   float64 `json:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent"`
}

type GridLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

type GridParams struct {
	Levels         int         `json:"levels"`
	SpacingPercent float64     `json:"spacing_percent"`
	AmountPerLevel float64     `json:"amount_per_level"`
	CenterPrice    float64     `json:"center_price"`
	Buy            []GridLevel `json:"buy"`
	Sell           []GridLevel `json:"sell"`
}

type BalancedParams struct {
	WeeklyAmount float64 `json:"weekly_amount"`
	Review       string  `json:"review"`
}

// Plan is a parameterized trading plan. Exactly one of the parameter blocks is set.
type Plan struct {
	Strategy   Name            `json:"strategy"`
	Token      string          `json:"token"`
	QuoteToken string          `json:"quote_token"`
	Budget     float64         `json:"budget"`
	Analysis   *Analysis       `json:"analysis,omitempty"`
	Fallback   bool            `json:"fallback,omitempty"`
	Rationale  string          `json:"rationale"`
	DCA        *DCAParams      `json:"dca,omitempty"`
	Momentum   *MomentumParams `json:"momentum,omitempty"`
	Grid       *GridParams     `json:"grid,omitempty"`
	Balanced   *BalancedParams `json:"balanced,omitempty"`
	FirstOrder Order           `json:"first_order"`
}

// Select applies the selection rules in order; the first match wins.
func Select(a Analysis) Name {
	switch {
	case a.Trend == TrendBearish && a.Volatility == LevelHigh:
		return NameDCA
	case a.Trend == TrendBullish && a.Volatility == LevelLow:
		return NameMomentum
	case a.Volatility == LevelHigh:
		return NameGrid
	default:
		return NameBalancedDCA
	}
}

// Build derives a plan for cfg. A nil analysis means market data is unavailable
// and yields the Balanced DCA fallback. price is the current token price; the
// Momentum and Grid branches fall back to Balanced DCA without one.
func Build(cfg Config, analysis *Analysis, price float64) (Plan, error) {
	token := strings.ToUpper(strings.TrimSpace(cfg.Token))
	if token == "" {
		return Plan{}, errors.New("strategy token is required")
	}
	budget := cfg.Budget.Float()
	if budget <= 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
		return Plan{}, errors.New("strategy budget must be positive")
	}
	quote := strings.ToUpper(strings.TrimSpace(cfg.QuoteToken))
	if quote == "" {
		quote = defaultQuoteToken
	}

	plan := Plan{
		Token:      token,
		QuoteToken: quote,
		Budget:     budget,
		Analysis:   analysis,
	}

	if analysis == nil {
		plan.Fallback = true
		balanced(&plan)
		plan.Rationale = "Market data unavailable; defaulting to a balanced weekly DCA of a quarter of the budget, reviewed monthly."
		return plan, nil
	}

	name := Select(*analysis)
	if (name == NameMomentum || name == NameGrid) && (price <= 0 || math.IsNaN(price) || math.IsInf(price, 0)) {
		plan.Fallback = true
		balanced(&plan)
		plan.Rationale = fmt.Sprintf(
			"%s signal but no current %s price available; defaulting to a balanced weekly DCA of a quarter of the budget, reviewed monthly.",
			name, token)
		return plan, nil
	}

	switch name {
	case NameDCA:
		n := intervals(cfg.Duration)
		plan.Strategy = NameDCA
		plan.DCA = &DCAParams{
			Intervals:         n,
			Cadence:           "daily",
			AmountPerInterval: budget / float64(n),
			DipTriggerPercent: dcaDipPercent,
			DipMultiplier:     dcaDipMultiplier,
		}
		plan.FirstOrder = Order{FromToken: quote, ToToken: token, Amount: plan.DCA.AmountPerInterval}
		plan.Rationale = fmt.Sprintf(
			"Bearish trend with high volatility (%.2f%% in 24h): spread the budget over %d equal daily buys and buy %.1fx on dips beyond %.0f%%.",
			analysis.PriceChange, n, dcaDipMultiplier, math.Abs(dcaDipPercent))

	case NameMomentum:
		immediate := budget * momentumImmediate
		plan.Strategy = NameMomentum
		plan.Momentum = &MomentumParams{
			ImmediateAmount:   immediate,
			ReserveAmount:     budget - immediate,
			EntryPrice:        price,
			StopLossPrice:     price * (1 + momentumStopLoss/100),
			TakeProfitPrice:   price * (1 + momentumTakeGain/100),
			StopLossPercent:   momentumStopLoss,
			TakeProfitPercent: momentumTakeGain,
		}
		plan.FirstOrder = Order{FromToken: quote, ToToken: token, Amount: immediate}
		plan.Rationale = "Bullish trend with low volatility: invest 60% now, keep 40% for dips, stop-loss at -5% and take-profit at +15% of entry."

	case NameGrid:
		plan.Strategy = NameGrid
		plan.Grid = grid(budget, price, analysis.Volatility)
		plan.FirstOrder = Order{FromToken: quote, ToToken: token, Amount: plan.Grid.AmountPerLevel}
		plan.Rationale = fmt.Sprintf(
			"High volatility without a bearish trend: place a %d-level grid spaced %.0f%% around %.8g to trade the range.",
			plan.Grid.Levels, plan.Grid.SpacingPercent, price)

	default:
		balanced(&plan)
		plan.Rationale = fmt.Sprintf(
			"%s trend with %s volatility: no strong signal, invest a quarter of the budget weekly and review monthly.",
			analysis.Trend, analysis.Volatility)
	}
	return plan, nil
}

func balanced(plan *Plan) {
	plan.Strategy = NameBalancedDCA
	plan.Balanced = &BalancedParams{
		WeeklyAmount: plan.Budget / 4,
		Review:       "monthly",
	}
	plan.FirstOrder = Order{FromToken: plan.QuoteToken, ToToken: plan.Token, Amount: plan.Balanced.WeeklyAmount}
}

func intervals(duration string) int {
	d := strings.ToLower(strings.TrimSpace(duration))
	d = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(d)
	switch d {
	case "week", "1week", "7days":
		return 7
	case "month", "1month", "30days":
		return 30
	case "3months", "threemonths", "quarter", "90days":
		return 90
	}
	return defaultIntervals
}

func gridLevels(budget float64) int {
	switch {
	case budget < 100:
		return 4
	case budget < 500:
		return 6
	case budget < 1000:
		return 8
	default:
		return 10
	}
}

func grid(budget, price float64, volatility Level) *GridParams {
	levels := gridLevels(budget)
	spacing := 2.0
	if volatility == LevelHigh {
		spacing = 3.0
	}
	perLevel := budget / float64(levels)

	g := &GridParams{
		Levels:         levels,
		SpacingPercent: spacing,
		AmountPerLevel: perLevel,
		CenterPrice:    price,
	}
	for i := 1; i <= levels/2; i++ {
		step := float64(i) * spacing / 100
		g.Buy = append(g.Buy, GridLevel{Price: price * (1 - step), Amount: perLevel})
		g.Sell = append(g.Sell, GridLevel{Price: price * (1 + step), Amount: perLevel})
	}
	return g
}

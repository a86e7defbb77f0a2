package condition

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradepilot/internal/automation/market"
	"tradepilot/pkg/flow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccessors struct {
	current   map[string]float64
	previous  map[string]float64
	balances  map[string]float64
	snapshots map[string]market.Snapshot
	now       time.Time
	triggered map[string]time.Time
	err       error
}

func (f *fakeAccessors) CurrentPrice(_ context.Context, token string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.current[token], nil
}

func (f *fakeAccessors) PreviousPrice(_ context.Context, token string) (float64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	p, ok := f.previous[token]
	return p, ok, nil
}

func (f *fakeAccessors) Balance(_ context.Context, token string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.balances[token], nil
}

func (f *fakeAccessors) Market(_ context.Context, token string) (market.Snapshot, error) {
	s, ok := f.snapshots[token]
	if !ok {
		return market.Snapshot{}, market.ErrUnavailable
	}
	return s, nil
}

func (f *fakeAccessors) Now() time.Time { return f.now }

func (f *fakeAccessors) LastTriggered(eventID string) time.Time { return f.triggered[eventID] }

func event(t flow.EventType, cfg flow.Config) flow.Event {
	return flow.Event{ID: "e1", Name: "test", Type: t, Config: cfg}
}

func TestPriceChange(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		pct       any
		previous  float64
		current   float64
		want      bool
	}{
		{"increase met", "Increase", 10, 100, 110, true},
		{"increase not met", "Increase", 10, 100, 109, false},
		{"increase from string percentage", "increase", "10%", 100, 115, true},
		{"decrease met", "Decrease", 5, 100, 95, true},
		{"decrease not met on rise", "Decrease", 5, 100, 120, false},
		{"any on drop", "Any", 5, 100, 94, true},
		{"any too small", "Any", 5, 100, 104, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &fakeAccessors{
				current:  map[string]float64{"ETH": tt.current},
				previous: map[string]float64{"ETH": tt.previous},
			}
			ev := event(flow.EventPriceChange, flow.Config{"token": "ETH", "direction": tt.direction, "percentage": tt.pct})

			ok, err := PriceChange(context.Background(), ev, acc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPriceChange_NoPreviousPrice(t *testing.T) {
	acc := &fakeAccessors{current: map[string]float64{"ETH": 500}}
	ev := event(flow.EventPriceChange, flow.Config{"token": "ETH", "direction": "Any", "percentage": 1})

	ok, err := PriceChange(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPriceChange_AccessorError(t *testing.T) {
	acc := &fakeAccessors{err: errors.New("agent down")}
	ev := event(flow.EventPriceChange, flow.Config{"token": "ETH", "direction": "Any", "percentage": 1})

	ok, err := PriceChange(context.Background(), ev, acc)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestWalletBalance(t *testing.T) {
	acc := &fakeAccessors{balances: map[string]float64{"USDC": 49}}
	below := event(flow.EventWalletBalance, flow.Config{"token": "USDC", "threshold_type": "Below", "amount": 50})

	ok, err := WalletBalance(context.Background(), below, acc)
	require.NoError(t, err)
	assert.True(t, ok)

	acc.balances["USDC"] = 50
	ok, err = WalletBalance(context.Background(), below, acc)
	require.NoError(t, err)
	assert.False(t, ok)

	above := event(flow.EventWalletBalance, flow.Config{"token": "USDC", "threshold_type": "Above", "amount": "49.5"})
	ok, err = WalletBalance(context.Background(), above, acc)
	require.NoError(t, err)
	assert.True(t, ok)

	bad := event(flow.EventWalletBalance, flow.Config{"token": "USDC", "threshold_type": "Equal", "amount": 50})
	_, err = WalletBalance(context.Background(), bad, acc)
	assert.Error(t, err)
}

func TestTimeSchedule_ExactMinute(t *testing.T) {
	ev := event(flow.EventTimeSchedule, flow.Config{"time": "09:00"})
	eval := TimeSchedule{}
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	acc := &fakeAccessors{now: day.Add(9 * time.Hour)}
	ok, err := eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.True(t, ok)

	acc.now = day.Add(9*time.Hour + 59*time.Second)
	ok, err = eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.True(t, ok)

	acc.now = day.Add(9*time.Hour + time.Minute)
	ok, err = eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.False(t, ok)

	acc.now = day.Add(8*time.Hour + 59*time.Minute)
	ok, err = eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimeSchedule_WindowFiresOnce(t *testing.T) {
	ev := event(flow.EventTimeSchedule, flow.Config{"time": "09:00"})
	eval := TimeSchedule{Window: 5 * time.Minute}
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	acc := &fakeAccessors{now: day.Add(9*time.Hour + 3*time.Minute), triggered: map[string]time.Time{}}
	ok, err := eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.True(t, ok)

	acc.triggered["e1"] = acc.now
	acc.now = acc.now.Add(time.Minute)
	ok, err = eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.False(t, ok)

	// next day the window opens again
	acc.now = acc.now.Add(24 * time.Hour)
	ok, err = eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTimeSchedule_AcrossMidnight(t *testing.T) {
	ev := event(flow.EventTimeSchedule, flow.Config{"time": "23:58"})
	eval := TimeSchedule{Window: 5 * time.Minute}

	acc := &fakeAccessors{now: time.Date(2025, 3, 15, 0, 1, 0, 0, time.UTC)}
	ok, err := eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.True(t, ok)

	acc.now = time.Date(2025, 3, 15, 0, 3, 0, 0, time.UTC)
	ok, err = eval.Evaluate(context.Background(), ev, acc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimeSchedule_InvalidTime(t *testing.T) {
	acc := &fakeAccessors{now: time.Now()}
	for _, s := range []string{"", "9am", "25:00", "09:60"} {
		_, err := TimeSchedule{}.Evaluate(context.Background(), event(flow.EventTimeSchedule, flow.Config{"time": s}), acc)
		assert.Error(t, err, s)
	}
}

func TestMarketCondition(t *testing.T) {
	acc := &fakeAccessors{snapshots: map[string]market.Snapshot{
		"ETH": {Token: "ETH", Price: 2000, PriceChange24h: -12, Volume24h: 20_000_000},
	}}

	ok, err := MarketCondition(context.Background(), event(flow.EventMarketCondition, flow.Config{"token": "ETH", "condition": "bearish"}), acc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MarketCondition(context.Background(), event(flow.EventMarketCondition, flow.Config{"token": "ETH", "indicator": "volatility", "condition": "HIGH"}), acc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MarketCondition(context.Background(), event(flow.EventMarketCondition, flow.Config{"token": "ETH", "indicator": "volume", "condition": "low"}), acc)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = MarketCondition(context.Background(), event(flow.EventMarketCondition, flow.Config{"token": "BTC", "condition": "bullish"}), acc)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = MarketCondition(context.Background(), event(flow.EventMarketCondition, flow.Config{"token": "ETH", "indicator": "mood", "condition": "x"}), acc)
	assert.Error(t, err)
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewDefaultRegistry(time.Minute)
	assert.True(t, r.Supports(flow.EventTimeSchedule))

	_, err := r.Evaluate(context.Background(), flow.Event{ID: "x", Type: "moon_phase"}, &fakeAccessors{})
	assert.ErrorIs(t, err, ErrUnknownType)
}

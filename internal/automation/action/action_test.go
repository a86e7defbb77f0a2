package action

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/automation/agent"
	"tradepilot/internal/automation/market"
	"tradepilot/internal/automation/notify"
	"tradepilot/internal/automation/planstore"
	"tradepilot/internal/automation/strategy"
	"tradepilot/pkg/flow"
)

type fakeAgent struct {
	calls    []string
	price    float64
	priceErr error
	swapErr  error
}

func (f *fakeAgent) Transfer(_ context.Context, token string, amount float64, recipient string) (agent.TxResult, error) {
	f.calls = append(f.calls, fmt.Sprintf("transfer %s %g %s", token, amount, recipient))
	return agent.TxResult{TxHash: "0x1", Status: "confirmed"}, nil
}

func (f *fakeAgent) Swap(_ context.Context, from, to string, amount float64) (agent.TxResult, error) {
	f.calls = append(f.calls, fmt.Sprintf("swap %s %s %g", from, to, amount))
	if f.swapErr != nil {
		return agent.TxResult{}, f.swapErr
	}
	return agent.TxResult{TxHash: "0x2", Status: "confirmed"}, nil
}

func (f *fakeAgent) Stake(_ context.Context, token string, amount float64, validator string) (agent.TxResult, error) {
	f.calls = append(f.calls, fmt.Sprintf("stake %s %g %s", token, amount, validator))
	return agent.TxResult{TxHash: "0x3", Status: "confirmed"}, nil
}

func (f *fakeAgent) GetTokenPrice(_ context.Context, token string) (float64, error) {
	f.calls = append(f.calls, "price "+token)
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price, nil
}

func (f *fakeAgent) GetBalance(context.Context, string) (float64, error) { return 0, nil }

type captureSink struct {
	msgs []notify.Message
}

func (c *captureSink) Notify(_ context.Context, msg notify.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newRegistry(ag *fakeAgent, sink notify.Sink, provider market.Provider, plans planstore.Store) *Registry {
	return NewDefaultRegistry(Deps{
		Agent:  ag,
		Sink:   sink,
		Market: provider,
		Plans:  plans,
		Now:    func() time.Time { return fixedNow },
	})
}

func req(t flow.ActionType, cfg flow.Config) Request {
	return Request{PipelineID: "p1", EventID: "e1", Action: flow.Action{ID: "a1", Name: "act", Type: t, Config: cfg}}
}

func TestAgentActions(t *testing.T) {
	ag := &fakeAgent{}
	r := newRegistry(ag, nil, nil, nil)
	ctx := context.Background()

	out, err := r.Execute(ctx, req(flow.ActionTransfer, flow.Config{"token": "USDC", "amount": "25", "recipient": "0xabc"}))
	require.NoError(t, err)
	assert.Equal(t, "0x1", out.(agent.TxResult).TxHash)

	_, err = r.Execute(ctx, req(flow.ActionSwap, flow.Config{"from_token": "USDC", "to_token": "ETH", "amount": 100}))
	require.NoError(t, err)

	_, err = r.Execute(ctx, req(flow.ActionStake, flow.Config{"token": "ETH", "amount": 1.5, "validator": "v1"}))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"transfer USDC 25 0xabc",
		"swap USDC ETH 100",
		"stake ETH 1.5 v1",
	}, ag.calls)
}

func TestAgentActions_InvalidConfig(t *testing.T) {
	ag := &fakeAgent{}
	r := newRegistry(ag, nil, nil, nil)
	ctx := context.Background()

	_, err := r.Execute(ctx, req(flow.ActionTransfer, flow.Config{"token": "USDC", "amount": 25}))
	assert.Error(t, err)
	_, err = r.Execute(ctx, req(flow.ActionSwap, flow.Config{"from_token": "USDC", "to_token": "ETH", "amount": 0}))
	assert.Error(t, err)
	_, err = r.Execute(ctx, req(flow.ActionStake, flow.Config{"amount": 1}))
	assert.Error(t, err)
	_, err = r.Execute(ctx, req(flow.ActionSwap, flow.Config{"from_token": "USDC", "to_token": "ETH", "amount": "lots"}))
	assert.Error(t, err)
	assert.Empty(t, ag.calls)
}

func TestRegistry_UnknownType(t *testing.T) {
	r := newRegistry(&fakeAgent{}, nil, nil, nil)
	_, err := r.Execute(context.Background(), req("bridge", flow.Config{}))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestNotification(t *testing.T) {
	sink := &captureSink{}
	ag := &fakeAgent{}
	r := newRegistry(ag, sink, nil, nil)

	out, err := r.Execute(context.Background(), req(flow.ActionNotification, flow.Config{"message": "ping"}))
	require.NoError(t, err)

	ack := out.(Ack)
	assert.True(t, ack.Delivered)
	assert.Equal(t, "ping", ack.Message)
	require.Len(t, sink.msgs, 1)
	assert.Equal(t, "p1", sink.msgs[0].PipelineID)
	assert.Equal(t, "act", sink.msgs[0].Title)
	assert.Equal(t, "info", sink.msgs[0].Level)
	assert.Empty(t, ag.calls)

	_, err = r.Execute(context.Background(), req(flow.ActionNotification, flow.Config{}))
	assert.Error(t, err)
}

func TestStrategy_FallbackWithoutMarketData(t *testing.T) {
	ag := &fakeAgent{}
	plans := planstore.NewMemoryStore(time.Hour)
	r := newRegistry(ag, nil, market.NewCache(time.Minute), plans)

	out, err := r.Execute(context.Background(), req(flow.ActionStrategy, flow.Config{"token": "ETH", "budget": 400}))
	require.NoError(t, err)

	res := out.(StrategyOutput)
	assert.Equal(t, strategy.NameBalancedDCA, res.Plan.Strategy)
	assert.True(t, res.Plan.Fallback)
	require.NotNil(t, res.FirstOrder)
	assert.Equal(t, []string{"swap USDC ETH 100"}, ag.calls)

	stored, err := plans.List(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "a1", stored[0].ActionID)
	assert.Equal(t, fixedNow, stored[0].CreatedAt)
}

func TestStrategy_GridFromSnapshot(t *testing.T) {
	ag := &fakeAgent{price: 100}
	cache := market.NewCache(0)
	cache.Put(market.Snapshot{Token: "ETH", PriceChange24h: 15, Volume24h: 5_000_000})
	r := newRegistry(ag, nil, cache, nil)

	out, err := r.Execute(context.Background(), req(flow.ActionStrategy, flow.Config{"token": "ETH", "budget": 1000, "quote_token": "USDT"}))
	require.NoError(t, err)

	res := out.(StrategyOutput)
	assert.Equal(t, strategy.NameGrid, res.Plan.Strategy)
	assert.Equal(t, 10, res.Plan.Grid.Levels)
	// snapshot had no price, so the agent was asked
	assert.Equal(t, []string{"price ETH", "swap USDT ETH 100"}, ag.calls)
}

func TestStrategy_GridWithoutPriceFallsBack(t *testing.T) {
	cache := market.NewCache(0)
	cache.Put(market.Snapshot{Token: "ETH", PriceChange24h: 15, Volume24h: 5_000_000})

	for _, ag := range []*fakeAgent{{priceErr: errors.New("agent down")}, {price: 0}} {
		r := newRegistry(ag, nil, cache, nil)
		out, err := r.Execute(context.Background(), req(flow.ActionStrategy, flow.Config{"token": "ETH", "budget": 400}))
		require.NoError(t, err)

		res := out.(StrategyOutput)
		assert.Equal(t, strategy.NameBalancedDCA, res.Plan.Strategy)
		assert.True(t, res.Plan.Fallback)
		require.NotNil(t, res.Plan.Analysis)
		assert.Equal(t, []string{"price ETH", "swap USDC ETH 100"}, ag.calls)
	}
}

func TestStrategy_RecommendOnly(t *testing.T) {
	ag := &fakeAgent{}
	r := newRegistry(ag, nil, nil, nil)

	out, err := r.Execute(context.Background(), req(flow.ActionStrategy, flow.Config{"token": "ETH", "budget": 100, "execute": false}))
	require.NoError(t, err)
	assert.Nil(t, out.(StrategyOutput).FirstOrder)
	assert.Empty(t, ag.calls)
}

func TestStrategy_FirstOrderFails(t *testing.T) {
	ag := &fakeAgent{swapErr: errors.New("slippage")}
	r := newRegistry(ag, nil, nil, nil)

	out, err := r.Execute(context.Background(), req(flow.ActionStrategy, flow.Config{"token": "ETH", "budget": 100}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slippage")
	assert.Equal(t, strategy.NameBalancedDCA, out.(StrategyOutput).Plan.Strategy)
}

func TestStrategy_MissingBudget(t *testing.T) {
	r := newRegistry(&fakeAgent{}, nil, nil, nil)
	_, err := r.Execute(context.Background(), req(flow.ActionStrategy, flow.Config{"token": "ETH"}))
	assert.Error(t, err)
}

package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradepilot/internal/automation/market"
)

// accessors serves condition lookups for one run. Prices are fetched once per
// token per run and recorded into the price history.
type accessors struct {
	opts      Options
	run       *run
	triggered map[string]time.Time

	mu     sync.Mutex
	prices map[string]float64
}

func newAccessors(opts Options, rn *run, triggered map[string]time.Time) *accessors {
	return &accessors{opts: opts, run: rn, triggered: triggered, prices: make(map[string]float64)}
}

func (a *accessors) CurrentPrice(ctx context.Context, token string) (float64, error) {
	key := market.NormalizeToken(token)
	a.mu.Lock()
	price, ok := a.prices[key]
	a.mu.Unlock()
	if ok {
		return price, nil
	}

	price, err := a.opts.Agent.GetTokenPrice(ctx, token)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	a.prices[key] = price
	a.mu.Unlock()

	if a.opts.Prices != nil {
		if err := a.opts.Prices.Record(ctx, key, price, "agent"); err != nil {
			a.run.logger.Warn("record price sample failed", zap.String("token", key), zap.Error(err))
		}
	}
	return price, nil
}

func (a *accessors) PreviousPrice(ctx context.Context, token string) (float64, bool, error) {
	if a.opts.Prices == nil {
		return 0, false, nil
	}
	return a.opts.Prices.Previous(ctx, token)
}

func (a *accessors) Balance(ctx context.Context, token string) (float64, error) {
	return a.opts.Agent.GetBalance(ctx, token)
}

func (a *accessors) Market(ctx context.Context, token string) (market.Snapshot, error) {
	if a.opts.Market == nil {
		return market.Snapshot{}, market.ErrUnavailable
	}
	return a.opts.Market.Snapshot(ctx, token)
}

func (a *accessors) Now() time.Time {
	return a.run.startedAt
}

func (a *accessors) LastTriggered(eventID string) time.Time {
	return a.triggered[eventID]
}

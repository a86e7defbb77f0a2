package market

import (
	"context"
	"time"
)

const defaultRetention = 7 * 24 * time.Hour

type PriceStore interface {
	AddSample(ctx context.Context, token string, price float64, at time.Time, source string) error
	PriceAt(ctx context.Context, token string, at time.Time) (float64, bool, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PriceHistory answers "what was the price one lookback ago" from recorded samples.
type PriceHistory struct {
	store     PriceStore
	lookback  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewPriceHistory(store PriceStore, lookback time.Duration) *PriceHistory {
	return &PriceHistory{
		store:     store,
		lookback:  lookback,
		retention: defaultRetention,
		now:       time.Now,
	}
}

func (h *PriceHistory) Record(ctx context.Context, token string, price float64, source string) error {
	if price <= 0 {
		return nil
	}
	return h.store.AddSample(ctx, NormalizeToken(token), price, h.now(), source)
}

// Previous returns the latest sample at or before now minus the lookback.
func (h *PriceHistory) Previous(ctx context.Context, token string) (float64, bool, error) {
	return h.store.PriceAt(ctx, NormalizeToken(token), h.now().Add(-h.lookback))
}

func (h *PriceHistory) Prune(ctx context.Context) (int64, error) {
	return h.store.Prune(ctx, h.now().Add(-h.retention))
}

// WithClock replaces the wall clock, e.g. with the scheduler's clock in tests.
func (h *PriceHistory) WithClock(now func() time.Time) *PriceHistory {
	h.now = now
	return h
}

package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrUnavailable = errors.New("market data unavailable")

// Snapshot is the rolling 24h view of one token.
type Snapshot struct {
	Token          string    `json:"token"`
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"price_change_24h"` // percent
	Volume24h      float64   `json:"volume_24h"`       // quote currency
	UpdatedAt      time.Time `json:"updated_at"`
}

type Provider interface {
	Snapshot(ctx context.Context, token string) (Snapshot, error)
}

// Cache keeps the latest snapshot per token and expires entries older than maxAge.
type Cache struct {
	maxAge time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewCache(maxAge time.Duration) *Cache {
	return &Cache{
		maxAge:    maxAge,
		now:       time.Now,
		snapshots: make(map[string]Snapshot),
	}
}

func (c *Cache) Put(s Snapshot) {
	key := NormalizeToken(s.Token)
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = c.now()
	}
	c.mu.Lock()
	c.snapshots[key] = s
	c.mu.Unlock()
}

func (c *Cache) Snapshot(_ context.Context, token string) (Snapshot, error) {
	c.mu.RLock()
	s, ok := c.snapshots[NormalizeToken(token)]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrUnavailable
	}
	if c.maxAge > 0 && c.now().Sub(s.UpdatedAt) > c.maxAge {
		return Snapshot{}, ErrUnavailable
	}
	return s, nil
}

// NormalizeToken maps "eth", "ETHUSDT" and "ETH/USDT" to "ETH".
func NormalizeToken(token string) string {
	t := strings.ToUpper(strings.TrimSpace(token))
	if i := strings.IndexAny(t, "/-"); i > 0 {
		t = t[:i]
	}
	for _, quote := range []string{"USDT", "USDC", "BUSD"} {
		if strings.HasSuffix(t, quote) && len(t) > len(quote) {
			return strings.TrimSuffix(t, quote)
		}
	}
	return t
}

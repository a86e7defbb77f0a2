package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sample struct {
	token string
	price float64
	at    time.Time
}

type memPrices struct {
	mu      sync.Mutex
	samples []sample
}

func (m *memPrices) AddSample(_ context.Context, token string, price float64, at time.Time, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample{token, price, at})
	return nil
}

func (m *memPrices) PriceAt(_ context.Context, token string, at time.Time) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *sample
	for i := range m.samples {
		s := &m.samples[i]
		if s.token == token && !s.at.After(at) && (best == nil || s.at.After(best.at)) {
			best = s
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.price, true, nil
}

func (m *memPrices) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.samples[:0]
	var n int64
	for _, s := range m.samples {
		if s.at.Before(before) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.samples = kept
	return n, nil
}

func TestNormalizeToken(t *testing.T) {
	for in, want := range map[string]string{
		"eth":      "ETH",
		"ETHUSDT":  "ETH",
		"btc/usdc": "BTC",
		"SOL-USD":  "SOL",
		"USDT":     "USDT",
	} {
		assert.Equal(t, want, NormalizeToken(in), in)
	}
}

func TestCache_Staleness(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute)
	c.now = func() time.Time { return now }

	_, err := c.Snapshot(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrUnavailable)

	c.Put(Snapshot{Token: "ETHUSDT", Price: 2000})
	s, err := c.Snapshot(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, s.Price)

	now = now.Add(2 * time.Minute)
	_, err = c.Snapshot(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPriceHistory_Previous(t *testing.T) {
	store := &memPrices{}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewPriceHistory(store, 5*time.Minute)
	h.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, h.Record(ctx, "eth", 100, "test"))
	_, ok, err := h.Previous(ctx, "ETH")
	require.NoError(t, err)
	assert.False(t, ok, "a sample from this instant is not a previous price")

	now = now.Add(5 * time.Minute)
	require.NoError(t, h.Record(ctx, "ETH", 110, "test"))
	price, ok, err := h.Previous(ctx, "ETH")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)

	now = now.Add(8 * 24 * time.Hour)
	n, err := h.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBinanceFeed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub.Params

		conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"24hrTicker","E":1735689600000,"s":"ETHUSDT","P":"-12.50","c":"3150.25","q":"250000000.5"}`))
		// keep the connection open until the client leaves
		conn.ReadMessage()
	}))
	defer srv.Close()

	cache := NewCache(0)
	store := &memPrices{}
	feed := NewBinanceFeed("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"ETHUSDT"}, cache, NewPriceHistory(store, time.Minute), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		feed.Run(ctx)
		close(done)
	}()

	select {
	case params := <-subscribed:
		assert.Equal(t, []string{"ethusdt@ticker"}, params)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription received")
	}

	require.Eventually(t, func() bool {
		_, err := cache.Snapshot(context.Background(), "ETH")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	snap, err := cache.Snapshot(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 3150.25, snap.Price)
	assert.Equal(t, -12.5, snap.PriceChange24h)
	assert.Equal(t, 250000000.5, snap.Volume24h)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.samples) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
}

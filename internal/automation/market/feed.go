package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	feedSource      = "binance"
	readTimeout     = 60 * time.Second
	writeTimeout    = 10 * time.Second
	maxReconnectGap = time.Minute
)

// BinanceFeed subscribes to 24h ticker streams and keeps the snapshot cache
// and the price history current.
type BinanceFeed struct {
	url     string
	symbols []string
	cache   *Cache
	history *PriceHistory
	logger  *zap.Logger

	// SampleEvery throttles price history writes per token.
	SampleEvery time.Duration

	mu          sync.Mutex
	lastSampled map[string]time.Time
}

func NewBinanceFeed(url string, symbols []string, cache *Cache, history *PriceHistory, logger *zap.Logger) *BinanceFeed {
	return &BinanceFeed{
		url:         url,
		symbols:     symbols,
		cache:       cache,
		history:     history,
		logger:      logger.Named("feed"),
		SampleEvery: time.Minute,
		lastSampled: make(map[string]time.Time),
	}
}

// Run keeps the stream connected until ctx is done.
func (f *BinanceFeed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("price feed disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxReconnectGap {
			backoff = maxReconnectGap
		}
	}
}

func (f *BinanceFeed) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("price feed connected", zap.Strings("symbols", f.symbols))

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err := f.handle(ctx, raw); err != nil {
			f.logger.Debug("skip feed message", zap.Error(err))
		}
	}
}

func (f *BinanceFeed) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		params = append(params, strings.ToLower(s)+"@ticker")
	}
	payload := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(payload)
}

type binanceTicker struct {
	Event       string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	ChangePct   string `json:"P"`
	LastPrice   string `json:"c"`
	QuoteVolume string `json:"q"`
}

func (f *BinanceFeed) handle(ctx context.Context, raw []byte) error {
	var t binanceTicker
	if err := json.Unmarshal(raw, &t); err != nil {
		return err
	}
	// subscription acks and other events
	if t.Event != "24hrTicker" {
		return nil
	}

	snap, err := t.snapshot()
	if err != nil {
		return err
	}
	f.cache.Put(snap)

	if f.history == nil || !f.dueForSample(snap.Token, snap.UpdatedAt) {
		return nil
	}
	if err := f.history.Record(ctx, snap.Token, snap.Price, feedSource); err != nil {
		f.logger.Warn("record price sample failed", zap.String("token", snap.Token), zap.Error(err))
	}
	return nil
}

func (f *BinanceFeed) dueForSample(token string, at time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if last, ok := f.lastSampled[token]; ok && at.Sub(last) < f.SampleEvery {
		return false
	}
	f.lastSampled[token] = at
	return true
}

func (t binanceTicker) snapshot() (Snapshot, error) {
	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ticker %s price %q: %w", t.Symbol, t.LastPrice, err)
	}
	change, _ := strconv.ParseFloat(t.ChangePct, 64)
	volume, _ := strconv.ParseFloat(t.QuoteVolume, 64)

	updated := time.Now()
	if t.EventTime > 0 {
		updated = time.UnixMilli(t.EventTime)
	}
	return Snapshot{
		Token:          NormalizeToken(t.Symbol),
		Price:          price,
		PriceChange24h: change,
		Volume24h:      volume,
		UpdatedAt:      updated,
	}, nil
}

package rpccall

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradepilot/internal/paperagent"
)

func newPaperClient(t *testing.T) *Client {
	t.Helper()
	prices := func(token string) (float64, bool) {
		if token == "ETH" {
			return 2000, true
		}
		return 0, false
	}
	service := paperagent.New(zap.NewNop(), prices, map[string]float64{"USDC": 1000, "ETH": 1})
	server, err := NewServer(service)
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	go server.ServeConn(serverConn)
	client := NewClientFromConn(clientConn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_RoundTrip(t *testing.T) {
	client := newPaperClient(t)
	ctx := context.Background()

	price, err := client.GetTokenPrice(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, price)

	tx, err := client.Swap(ctx, "USDC", "ETH", 500)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", tx.Status)
	assert.InDelta(t, 0.25, tx.Amount, 1e-9)
	assert.NotEmpty(t, tx.TxHash)

	balance, err := client.GetBalance(ctx, "ETH")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, balance, 1e-9)

	_, err = client.Transfer(ctx, "USDC", 10_000, "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient")

	_, err = client.Stake(ctx, "ETH", 1, "validator-1")
	require.NoError(t, err)
}

func TestClient_ContextDeadline(t *testing.T) {
	// the other end swallows requests and never answers
	serverConn, clientConn := net.Pipe()
	go func() { _, _ = io.Copy(io.Discard, serverConn) }()
	client := NewClientFromConn(clientConn)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.GetBalance(ctx, "ETH")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_RedialsAfterTimeout(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() { _, _ = io.Copy(io.Discard, conn) }()
		}
	}()

	client, err := NewClient(listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, func() bool { return accepted.Load() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err = client.GetBalance(ctx, "ETH")
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	// the second call dialed a fresh connection
	require.Eventually(t, func() bool { return accepted.Load() == 2 }, time.Second, 5*time.Millisecond)
}

package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowAgent blocks every call until its context is done.
type slowAgent struct{}

func (slowAgent) Transfer(ctx context.Context, _ string, _ float64, _ string) (TxResult, error) {
	<-ctx.Done()
	return TxResult{}, ctx.Err()
}

func (slowAgent) Swap(ctx context.Context, _, _ string, _ float64) (TxResult, error) {
	<-ctx.Done()
	return TxResult{}, ctx.Err()
}

func (slowAgent) Stake(ctx context.Context, _ string, _ float64, _ string) (TxResult, error) {
	<-ctx.Done()
	return TxResult{}, ctx.Err()
}

func (slowAgent) GetTokenPrice(ctx context.Context, _ string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (slowAgent) GetBalance(ctx context.Context, _ string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	a := WithTimeout(slowAgent{}, 20*time.Millisecond)

	start := time.Now()
	_, err := a.Swap(context.Background(), "USDC", "ETH", 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	_, err = a.GetTokenPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeout_ZeroKeepsAgent(t *testing.T) {
	var base Agent = slowAgent{}
	assert.Equal(t, base, WithTimeout(base, 0))
}

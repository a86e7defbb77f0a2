package paperagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradepilot/pkg/agentrpc"
)

func newAgent() *Agent {
	prices := func(token string) (float64, bool) {
		if token == "ETH" {
			return 2000, true
		}
		return 0, false
	}
	return New(zap.NewNop(), prices, map[string]float64{"usdc": 1000})
}

func balance(t *testing.T, a *Agent, token string) float64 {
	t.Helper()
	var resp agentrpc.BalanceResponse
	require.NoError(t, a.GetBalance(&agentrpc.TokenRequest{Token: token}, &resp))
	return resp.Balance
}

func TestAgent_SwapUsesPrices(t *testing.T) {
	a := newAgent()

	var resp agentrpc.TxResponse
	require.NoError(t, a.Swap(&agentrpc.SwapRequest{FromToken: "USDC", ToToken: "eth", Amount: 500}, &resp))
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, "ETH", resp.Token)
	assert.InDelta(t, 0.25, resp.Amount, 1e-9)
	assert.NotEmpty(t, resp.TxHash)

	assert.InDelta(t, 500, balance(t, a, "USDC"), 1e-9)
	assert.InDelta(t, 0.25, balance(t, a, "ETH"), 1e-9)
}

func TestAgent_Rejects(t *testing.T) {
	a := newAgent()
	var resp agentrpc.TxResponse

	err := a.Transfer(&agentrpc.TransferRequest{Token: "USDC", Amount: 5000, Recipient: "0xabc"}, &resp)
	assert.ErrorContains(t, err, "insufficient USDC balance")

	err = a.Transfer(&agentrpc.TransferRequest{Token: "USDC", Amount: 5}, &resp)
	assert.ErrorContains(t, err, "recipient is required")

	err = a.Stake(&agentrpc.StakeRequest{Token: "USDC", Amount: 0, Validator: "v1"}, &resp)
	assert.ErrorContains(t, err, "amount must be positive")

	err = a.Swap(&agentrpc.SwapRequest{FromToken: "USDC", ToToken: "DOGE", Amount: 1}, &resp)
	assert.ErrorContains(t, err, "no price for DOGE")

	assert.InDelta(t, 1000, balance(t, a, "USDC"), 1e-9)
}

func TestAgent_StakeDebits(t *testing.T) {
	a := newAgent()
	var resp agentrpc.TxResponse
	require.NoError(t, a.Stake(&agentrpc.StakeRequest{Token: "USDC", Amount: 100, Validator: "v1"}, &resp))
	assert.Equal(t, "stake with v1", resp.Detail)
	assert.InDelta(t, 900, balance(t, a, "USDC"), 1e-9)

	var price agentrpc.PriceResponse
	require.NoError(t, a.GetTokenPrice(&agentrpc.TokenRequest{Token: "usdt"}, &price))
	assert.Equal(t, 1.0, price.Price)
}

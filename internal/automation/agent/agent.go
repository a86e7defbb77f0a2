// Package agent defines the Execution Agent collaborator: the external service
// that signs and submits on-chain transactions and answers price and balance lookups.
package agent

import (
	"context"
	"time"
)

// TxResult is what the agent reports for a submitted transaction.
type TxResult struct {
	TxHash    string    `json:"tx_hash"`
	Status    string    `json:"status"`
	Token     string    `json:"token,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Submitted time.Time `json:"submitted"`
}

type Agent interface {
	Transfer(ctx context.Context, token string, amount float64, recipient string) (TxResult, error)
	Swap(ctx context.Context, fromToken, toToken string, amount float64) (TxResult, error)
	Stake(ctx context.Context, token string, amount float64, validator string) (TxResult, error)
	GetTokenPrice(ctx context.Context, token string) (float64, error)
	GetBalance(ctx context.Context, token string) (float64, error)
}

// WithTimeout bounds every call made through a by timeout. A zero timeout
// returns a unchanged.
func WithTimeout(a Agent, timeout time.Duration) Agent {
	if timeout <= 0 {
		return a
	}
	return &timeoutAgent{next: a, timeout: timeout}
}

type timeoutAgent struct {
	next    Agent
	timeout time.Duration
}

func (t *timeoutAgent) Transfer(ctx context.Context, token string, amount float64, recipient string) (TxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Transfer(ctx, token, amount, recipient)
}

func (t *timeoutAgent) Swap(ctx context.Context, fromToken, toToken string, amount float64) (TxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Swap(ctx, fromToken, toToken, amount)
}

func (t *timeoutAgent) Stake(ctx context.Context, token string, amount float64, validator string) (TxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Stake(ctx, token, amount, validator)
}

func (t *timeoutAgent) GetTokenPrice(ctx context.Context, token string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.GetTokenPrice(ctx, token)
}

func (t *timeoutAgent) GetBalance(ctx context.Context, token string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.GetBalance(ctx, token)
}

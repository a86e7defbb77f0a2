// Package paperagent is an in-memory execution agent that settles transfers,
// swaps and stakes against simulated balances. It serves the same JSON-RPC
// contract as a live agent.
package paperagent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradepilot/pkg/agentrpc"
)

// PriceSource returns the USD price of token; ok is false when unknown.
type PriceSource func(token string) (price float64, ok bool)

type Agent struct {
	logger *zap.Logger
	prices PriceSource
	now    func() time.Time

	mu       sync.Mutex
	balances map[string]float64
	staked   map[string]float64
}

func New(logger *zap.Logger, prices PriceSource, balances map[string]float64) *Agent {
	b := make(map[string]float64, len(balances))
	for token, amount := range balances {
		b[strings.ToUpper(token)] = amount
	}
	return &Agent{
		logger:   logger,
		prices:   prices,
		now:      time.Now,
		balances: b,
		staked:   make(map[string]float64),
	}
}

func (a *Agent) Transfer(req *agentrpc.TransferRequest, resp *agentrpc.TxResponse) error {
	if req.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	token := strings.ToUpper(req.Token)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.debit(token, req.Amount); err != nil {
		return err
	}
	*resp = a.tx(token, req.Amount, "transfer to "+req.Recipient)
	return nil
}

func (a *Agent) Swap(req *agentrpc.SwapRequest, resp *agentrpc.TxResponse) error {
	from, to := strings.ToUpper(req.FromToken), strings.ToUpper(req.ToToken)
	fromPrice, err := a.price(from)
	if err != nil {
		return err
	}
	toPrice, err := a.price(to)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.debit(from, req.Amount); err != nil {
		return err
	}
	received := req.Amount * fromPrice / toPrice
	a.balances[to] += received
	*resp = a.tx(to, received, fmt.Sprintf("swap %.8g %s -> %.8g %s", req.Amount, from, received, to))
	return nil
}

func (a *Agent) Stake(req *agentrpc.StakeRequest, resp *agentrpc.TxResponse) error {
	token := strings.ToUpper(req.Token)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.debit(token, req.Amount); err != nil {
		return err
	}
	a.staked[token] += req.Amount
	*resp = a.tx(token, req.Amount, "stake with "+req.Validator)
	return nil
}

func (a *Agent) GetTokenPrice(req *agentrpc.TokenRequest, resp *agentrpc.PriceResponse) error {
	price, err := a.price(strings.ToUpper(req.Token))
	if err != nil {
		return err
	}
	resp.Price = price
	return nil
}

func (a *Agent) GetBalance(req *agentrpc.TokenRequest, resp *agentrpc.BalanceResponse) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	resp.Balance = a.balances[strings.ToUpper(req.Token)]
	return nil
}

func (a *Agent) price(token string) (float64, error) {
	if isStable(token) {
		return 1, nil
	}
	if a.prices != nil {
		if p, ok := a.prices(token); ok && p > 0 {
			return p, nil
		}
	}
	return 0, fmt.Errorf("no price for %s", token)
}

// debit must be called with mu held.
func (a *Agent) debit(token string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if a.balances[token] < amount {
		return fmt.Errorf("insufficient %s balance: have %.8g, need %.8g", token, a.balances[token], amount)
	}
	a.balances[token] -= amount
	return nil
}

func (a *Agent) tx(token string, amount float64, detail string) agentrpc.TxResponse {
	resp := agentrpc.TxResponse{
		TxHash:      "0x" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:      "confirmed",
		Token:       token,
		Amount:      amount,
		Detail:      detail,
		SubmittedAt: a.now().Unix(),
	}
	a.logger.Info("paper tx", zap.String("tx", resp.TxHash), zap.String("detail", detail))
	return resp
}

func isStable(token string) bool {
	switch token {
	case "USDC", "USDT", "DAI", "USD":
		return true
	}
	return false
}

package rpccall

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"tradepilot/internal/automation/agent"
	"tradepilot/pkg/agentrpc"
)

// Client talks to the execution agent over JSON-RPC and implements agent.Agent.
type Client struct {
	addr string

	mu        sync.Mutex
	rpcClient *rpc.Client
}

func NewClient(executorRPCAddr string) (*Client, error) {
	c := &Client{addr: executorRPCAddr}
	if _, err := c.conn(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewClientFromConn wraps an established connection; used when the agent is in-process.
func NewClientFromConn(conn net.Conn) *Client {
	return &Client{rpcClient: jsonrpc.NewClient(conn)}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpcClient == nil {
		return nil
	}
	err := c.rpcClient.Close()
	c.rpcClient = nil
	return err
}

func (c *Client) conn() (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpcClient != nil {
		return c.rpcClient, nil
	}
	if c.addr == "" {
		return nil, rpc.ErrShutdown
	}
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial execution agent: %w", err)
	}
	c.rpcClient = jsonrpc.NewClient(conn)
	return c.rpcClient, nil
}

// drop closes client and forgets it if it is still the current connection.
func (c *Client) drop(client *rpc.Client) {
	c.mu.Lock()
	if c.rpcClient == client {
		c.rpcClient = nil
	}
	c.mu.Unlock()
	_ = client.Close()
}

// call issues method and gives up when ctx is done. A timed out or shut down
// connection is dropped so the next call redials.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	pending := client.Go(agentrpc.ServiceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		c.drop(client)
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case done := <-pending.Done:
		if errors.Is(done.Error, rpc.ErrShutdown) {
			c.drop(client)
		}
		if done.Error != nil {
			return fmt.Errorf("%s: %w", method, done.Error)
		}
		return nil
	}
}

func (c *Client) Transfer(ctx context.Context, token string, amount float64, recipient string) (agent.TxResult, error) {
	var resp agentrpc.TxResponse
	err := c.call(ctx, "Transfer", &agentrpc.TransferRequest{Token: token, Amount: amount, Recipient: recipient}, &resp)
	if err != nil {
		return agent.TxResult{}, err
	}
	return toTxResult(resp), nil
}

func (c *Client) Swap(ctx context.Context, fromToken, toToken string, amount float64) (agent.TxResult, error) {
	var resp agentrpc.TxResponse
	err := c.call(ctx, "Swap", &agentrpc.SwapRequest{FromToken: fromToken, ToToken: toToken, Amount: amount}, &resp)
	if err != nil {
		return agent.TxResult{}, err
	}
	return toTxResult(resp), nil
}

func (c *Client) Stake(ctx context.Context, token string, amount float64, validator string) (agent.TxResult, error) {
	var resp agentrpc.TxResponse
	err := c.call(ctx, "Stake", &agentrpc.StakeRequest{Token: token, Amount: amount, Validator: validator}, &resp)
	if err != nil {
		return agent.TxResult{}, err
	}
	return toTxResult(resp), nil
}

func (c *Client) GetTokenPrice(ctx context.Context, token string) (float64, error) {
	var resp agentrpc.PriceResponse
	if err := c.call(ctx, "GetTokenPrice", &agentrpc.TokenRequest{Token: token}, &resp); err != nil {
		return 0, err
	}
	return resp.Price, nil
}

func (c *Client) GetBalance(ctx context.Context, token string) (float64, error) {
	var resp agentrpc.BalanceResponse
	if err := c.call(ctx, "GetBalance", &agentrpc.TokenRequest{Token: token}, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func toTxResult(resp agentrpc.TxResponse) agent.TxResult {
	return agent.TxResult{
		TxHash:    resp.TxHash,
		Status:    resp.Status,
		Token:     resp.Token,
		Amount:    resp.Amount,
		Detail:    resp.Detail,
		Submitted: time.Unix(resp.SubmittedAt, 0).UTC(),
	}
}

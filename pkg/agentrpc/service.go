package agentrpc

// ServiceName is the JSON-RPC service the execution agent registers.
const ServiceName = "ExecutionAgent"

// ExecutionAgentService is implemented by the remote execution agent.
type ExecutionAgentService interface {
	Transfer(req *TransferRequest, resp *TxResponse) error
	Swap(req *SwapRequest, resp *TxResponse) error
	Stake(req *StakeRequest, resp *TxResponse) error
	GetTokenPrice(req *TokenRequest, resp *PriceResponse) error
	GetBalance(req *TokenRequest, resp *BalanceResponse) error
}

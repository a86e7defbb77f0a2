package agentrpc

type TransferRequest struct {
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient"`
}

type SwapRequest struct {
	FromToken string  `json:"from_token"`
	ToToken   string  `json:"to_token"`
	Amount    float64 `json:"amount"`
}

type StakeRequest struct {
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Validator string  `json:"validator"`
}

type TxResponse struct {
	TxHash      string  `json:"tx_hash"`
	Status      string  `json:"status"`
	Token       string  `json:"token,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Detail      string  `json:"detail,omitempty"`
	SubmittedAt int64   `json:"submitted_at"` // unix seconds
}

type TokenRequest struct {
	Token string `json:"token"`
}

type PriceResponse struct {
	Price float64 `json:"price"`
}

type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

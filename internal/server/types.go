package server

import (
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Executor string `json:"executor"`
	Operator string `json:"operator"`
	Router   string `json:"router"`
	Pools    int    `json:"pools"`
}

// DeployWalletRequest creates a proxy account for a user
type DeployWalletRequest struct {
	User     string `json:"user"`               // User (wallet owner) address
	Referrer string `json:"referrer,omitempty"` // Optional referrer address
}

// DepositRequest credits a wallet from the development faucet
type DepositRequest struct {
	Asset  string `json:"asset"`  // Symbol ("ETH", "DAI") or token address
	Amount string `json:"amount"` // Base units, decimal or 0x-hex
}

// SwapRequestBody is a raw swap: the caller supplies the counterparty
// call. Amounts are base units as decimal or 0x-hex strings.
type SwapRequestBody struct {
	Wallet     string `json:"wallet"`
	FromAsset  string `json:"from_asset"`
	Amount     string `json:"amount"`
	ToAsset    string `json:"to_asset"`
	MinReturn  string `json:"min_return,omitempty"`
	FeeBps     uint16 `json:"fee_bps"`
	PayToOwner bool   `json:"pay_to_owner,omitempty"`
	GasBudget  uint64 `json:"gas_budget,omitempty"`
	Spender    string `json:"spender,omitempty"`
	Target     string `json:"target"`
	Payload    string `json:"payload"` // 0x-hex calldata
}

// SwapIntentBody is a swap routed through the bundled router
type SwapIntentBody struct {
	User        string  `json:"user"`
	FromAsset   string  `json:"from_asset"`
	ToAsset     string  `json:"to_asset"`
	Amount      string  `json:"amount"`
	SlippageBps *uint16 `json:"slippage_bps,omitempty"`
	FeeBps      uint16  `json:"fee_bps"`
	PayToOwner  bool    `json:"pay_to_owner,omitempty"`
	GasBudget   uint64  `json:"gas_budget,omitempty"`
}

// SwapResponse wraps a committed swap attempt
type SwapResponse struct {
	Outcome *swapengine.SwapOutcome `json:"outcome"`
	Quote   *swapengine.QuoteResult `json:"quote,omitempty"`
}

// CollectRequest withdraws extra executor balance
type CollectRequest struct {
	Token  string `json:"token,omitempty"` // Required for /collect/tokens
	Amount string `json:"amount"`
	To     string `json:"to"`
}

// SweepRequest sends accrued fees to the fee sink; empty sweeps all
type SweepRequest struct {
	Assets []string `json:"assets,omitempty"`
}

// SetOperatorRequest rotates the swap operator
type SetOperatorRequest struct {
	Operator string `json:"operator"`
}

// PendingFee is one asset with uncollected fees
type PendingFee struct {
	Asset   string `json:"asset"`
	Accrued string `json:"accrued"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}

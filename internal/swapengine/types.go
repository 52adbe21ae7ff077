package swapengine

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/aman-zulfiqar/w2w-relay/internal/fees"
	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

var (
	ErrOnlyExecutor            = errors.New("W2W:Only Executor")
	ErrOnlyOwner               = errors.New("W2W:Only owner")
	ErrNotEnoughETH            = errors.New("W2W:Not enough ETH in UserWallet")
	ErrInvalidRequest          = errors.New("W2W:Invalid request")
	ErrUnknownWallet           = errors.New("W2W:Unknown wallet")
	ErrInsufficientExtraTokens = errors.New("W2W:Insufficient extra tokens")
	ErrInsufficientExtraETH    = errors.New("W2W:Insufficient extra ETH")
	ErrNoFeeSink               = errors.New("W2W:Fee sink not set")
	ErrRelayPaused             = errors.New("relay is paused")
	ErrFeeTooHigh              = fees.ErrFeeTooHigh
)

// Soft-failure reasons surfaced through the Error event.
const (
	ReasonLessThanMinimum    = "W2W:Less than minimum received"
	ReasonSourceOverspent    = "W2W:Source overspent"
	ReasonDestinationDrained = "W2W:Destination balance decreased"
	ReasonUnknownError       = "W2W:Unknown error"
)

// Event names emitted by the executor.
const (
	EventError         = "Error"
	EventSwapped       = "Swapped"
	EventGasReimbursed = "GasReimbursed"
	EventCollected     = "Collected"
	EventFeesSent      = "FeesSent"
	EventParamChanged  = "ParamChanged"
)

// Shape is one of the three asset-class specializations of a swap.
type Shape string

const (
	ShapeETHForTokens Shape = "eth_for_tokens"
	ShapeTokens       Shape = "tokens_for_tokens"
	ShapeTokensForETH Shape = "tokens_for_eth"
)

func (s Shape) nativeSource() bool      { return s == ShapeETHForTokens }
func (s Shape) nativeDestination() bool { return s == ShapeTokensForETH }

// SwapRequest is an operator's instruction to swap out of a user wallet.
type SwapRequest struct {
	Wallet     common.Address
	FromAsset  common.Address
	Amount     *big.Int
	ToAsset    common.Address
	MinReturn  *big.Int
	Fee        fees.Rate
	PayToOwner bool
	GasBudget  uint64

	// Spender is approved for Amount of a token source; Target receives
	// the opaque Payload.
	Spender common.Address
	Target  common.Address
	Payload hexutil.Bytes
}

// SwapOutcome describes a committed swap attempt. Success is false for a
// soft failure, in which case Reason and ErrorData are set.
type SwapOutcome struct {
	ExecutionID string         `json:"execution_id"`
	Shape       Shape          `json:"shape"`
	Wallet      common.Address `json:"wallet"`
	FromAsset   common.Address `json:"from_asset"`
	ToAsset     common.Address `json:"to_asset"`
	Amount      *big.Int       `json:"amount"`

	Success   bool          `json:"success"`
	Reason    string        `json:"reason,omitempty"`
	ErrorData hexutil.Bytes `json:"error_data,omitempty"`

	GrossOutput  *big.Int       `json:"gross_output"`
	Fee          *big.Int       `json:"fee"`
	FeeRate      fees.Rate      `json:"fee_rate_bps"`
	NetDelivered *big.Int       `json:"net_delivered"`
	SourceSpent  *big.Int       `json:"source_spent"`
	Recipient    common.Address `json:"recipient"`

	GasUsed       uint64   `json:"gas_used"`
	GasReimbursed *big.Int `json:"gas_reimbursed"`

	Events   []ledger.Event `json:"events,omitempty"`
	Duration time.Duration  `json:"duration"`
	DoneAt   time.Time      `json:"done_at"`
}

// GuardResult is the outcome of the gas-budget pre-flight check.
type GuardResult struct {
	Allowed   bool
	Reason    string
	Required  *big.Int
	Available *big.Int
	Reserve   *big.Int
}

// CollectResult reports an owner collection or fee sweep.
type CollectResult struct {
	Asset     common.Address            `json:"asset,omitempty"`
	Amount    *big.Int                  `json:"amount,omitempty"`
	Recipient common.Address            `json:"recipient"`
	Swept     map[common.Address]string `json:"swept,omitempty"`
	GasUsed   uint64                    `json:"gas_used"`
	Events    []ledger.Event            `json:"events,omitempty"`
}

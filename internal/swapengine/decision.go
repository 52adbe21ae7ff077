package swapengine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

// DefaultGasBudget matches the budget operators have historically sent.
const DefaultGasBudget uint64 = 3_000_000

// DecisionEngine normalizes and validates operator requests before they
// reach the executor.
type DecisionEngine struct {
	defaultGasBudget uint64
	maxGasBudget     uint64
}

func NewDecisionEngine(defaultGasBudget, maxGasBudget uint64) *DecisionEngine {
	if defaultGasBudget == 0 {
		defaultGasBudget = DefaultGasBudget
	}
	return &DecisionEngine{defaultGasBudget: defaultGasBudget, maxGasBudget: maxGasBudget}
}

// EnrichRequest fills optional fields the operator left out.
func (de *DecisionEngine) EnrichRequest(req *SwapRequest) {
	if req.GasBudget == 0 {
		req.GasBudget = de.defaultGasBudget
	}
	if req.MinReturn == nil {
		req.MinReturn = new(big.Int)
	}
	if req.Spender == (common.Address{}) {
		req.Spender = req.Target
	}
}

// ValidateRequest checks shape consistency and field constraints. It does
// not touch ledger state.
func (de *DecisionEngine) ValidateRequest(shape Shape, req *SwapRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	if err := ValidateRequest(shape, req); err != nil {
		return err
	}
	if de.maxGasBudget > 0 && req.GasBudget > de.maxGasBudget {
		return fmt.Errorf("%w: gas budget %d exceeds max %d", ErrInvalidRequest, req.GasBudget, de.maxGasBudget)
	}
	return nil
}

// ValidateRequest is the executor-side request check.
func ValidateRequest(shape Shape, req *SwapRequest) error {
	switch shape {
	case ShapeETHForTokens:
		if !ledger.IsNative(req.FromAsset) || ledger.IsNative(req.ToAsset) {
			return fmt.Errorf("%w: %s needs native source and token destination", ErrInvalidRequest, shape)
		}
	case ShapeTokens:
		if ledger.IsNative(req.FromAsset) || ledger.IsNative(req.ToAsset) {
			return fmt.Errorf("%w: %s needs token source and destination", ErrInvalidRequest, shape)
		}
	case ShapeTokensForETH:
		if ledger.IsNative(req.FromAsset) || !ledger.IsNative(req.ToAsset) {
			return fmt.Errorf("%w: %s needs token source and native destination", ErrInvalidRequest, shape)
		}
	default:
		return fmt.Errorf("%w: unknown shape %q", ErrInvalidRequest, shape)
	}

	zero := common.Address{}
	switch {
	case req.Wallet == zero:
		return fmt.Errorf("%w: wallet required", ErrInvalidRequest)
	case req.FromAsset == zero || req.ToAsset == zero:
		return fmt.Errorf("%w: assets required", ErrInvalidRequest)
	case req.FromAsset == req.ToAsset:
		return fmt.Errorf("%w: source and destination must differ", ErrInvalidRequest)
	case req.Amount == nil || req.Amount.Sign() <= 0:
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	case req.MinReturn != nil && req.MinReturn.Sign() < 0:
		return fmt.Errorf("%w: min return must be >= 0", ErrInvalidRequest)
	case req.GasBudget == 0:
		return fmt.Errorf("%w: gas budget must be > 0", ErrInvalidRequest)
	case req.Target == zero:
		return fmt.Errorf("%w: call target required", ErrInvalidRequest)
	case !shape.nativeSource() && req.Spender == zero:
		return fmt.Errorf("%w: spender required for token source", ErrInvalidRequest)
	}
	return req.Fee.Validate()
}

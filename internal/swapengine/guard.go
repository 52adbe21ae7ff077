package swapengine

import (
	"fmt"
	"math/big"
)

// DefaultGasPriceWei is the relay's assumed gas price (20 gwei).
var DefaultGasPriceWei = big.NewInt(20_000_000_000)

// Guard protects the operator from paying gas the wallet cannot refund.
// The gas price is fixed at construction and never derived per request.
type Guard struct {
	gasPrice *big.Int
}

func NewGuard(gasPrice *big.Int) *Guard {
	if gasPrice == nil || gasPrice.Sign() <= 0 {
		gasPrice = DefaultGasPriceWei
	}
	return &Guard{gasPrice: new(big.Int).Set(gasPrice)}
}

// GasPrice returns the assumed gas price.
func (g *Guard) GasPrice() *big.Int {
	return new(big.Int).Set(g.gasPrice)
}

// Reserve is the native amount set aside for a gas budget.
func (g *Guard) Reserve(gasBudget uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gasBudget), g.gasPrice)
}

// Cost prices gasUsed, capped at the budget's reserve.
func (g *Guard) Cost(gasUsed, gasBudget uint64) *big.Int {
	if gasUsed > gasBudget {
		gasUsed = gasBudget
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), g.gasPrice)
}

// Check requires nativeBalance ≥ nativeSource + gasBudget×gasPrice.
func (g *Guard) Check(nativeBalance, nativeSource *big.Int, gasBudget uint64) *GuardResult {
	reserve := g.Reserve(gasBudget)
	required := new(big.Int).Add(nativeSource, reserve)

	result := &GuardResult{
		Allowed:   true,
		Required:  required,
		Available: new(big.Int).Set(nativeBalance),
		Reserve:   reserve,
	}
	if nativeBalance.Cmp(required) < 0 {
		result.Allowed = false
		result.Reason = fmt.Sprintf("wallet holds %s wei, needs %s (source %s + gas reserve %s)",
			nativeBalance, required, nativeSource, reserve)
	}
	return result
}

// Err converts a rejected result into ErrNotEnoughETH.
func (r *GuardResult) Err() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotEnoughETH, r.Reason)
}

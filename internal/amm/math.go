package amm

import (
	"errors"
	"math/big"
)

const bpsDenominator = 10000

var (
	ErrInsufficientInput     = errors.New("UniswapV2Library: INSUFFICIENT_INPUT_AMOUNT")
	ErrInsufficientLiquidity = errors.New("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
)

// GetAmountOut computes the constant-product output for amountIn with the
// pool fee (in bps) taken from the input side.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	// out = in*(10000-fee)*rOut / (rIn*10000 + in*(10000-fee))
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(bpsDenominator-uint64(feeBps))))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenominator))
	denominator.Add(denominator, inWithFee)

	return numerator.Quo(numerator, denominator), nil
}

// ApplySlippage returns the minimum acceptable output for a tolerance in
// basis points.
func ApplySlippage(amountOut *big.Int, slippageBps uint16) *big.Int {
	if slippageBps >= bpsDenominator {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amountOut, big.NewInt(int64(bpsDenominator-uint64(slippageBps))))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

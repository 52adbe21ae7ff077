package amm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const routerJSON = `[
{"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
{"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
{"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
{"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

// RouterABI is the Uniswap V2 router subset the AMM answers to.
var RouterABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(routerJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// PackSwapExactETHForTokens builds calldata for a native→token swap.
func PackSwapExactETHForTokens(minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return RouterABI.Pack("swapExactETHForTokens", minOut, path, to, deadline)
}

// PackSwapExactTokensForTokens builds calldata for a token→token swap.
func PackSwapExactTokensForTokens(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return RouterABI.Pack("swapExactTokensForTokens", amountIn, minOut, path, to, deadline)
}

// PackSwapExactTokensForETH builds calldata for a token→native swap.
func PackSwapExactTokensForETH(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return RouterABI.Pack("swapExactTokensForETH", amountIn, minOut, path, to, deadline)
}

// PackGetAmountsOut builds calldata for a quote.
func PackGetAmountsOut(amountIn *big.Int, path []common.Address) ([]byte, error) {
	return RouterABI.Pack("getAmountsOut", amountIn, path)
}

// UnpackAmounts decodes the uint256[] returned by any router method.
func UnpackAmounts(method string, data []byte) ([]*big.Int, error) {
	out, err := RouterABI.Unpack(method, data)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected outputs for %s", method)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", out[0])
	}
	return amounts, nil
}

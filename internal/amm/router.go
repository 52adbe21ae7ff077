// Package amm is a constant-product router used as the relay's external
// swap counterparty.
package amm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

// GasSwapHop is charged for every pool a swap passes through.
const GasSwapHop uint64 = 60000

const (
	reasonExpired            = "UniswapV2Router: EXPIRED"
	reasonInsufficientOutput = "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"
	reasonInvalidPath        = "UniswapV2Router: INVALID_PATH"
	reasonTransferFrom       = "TransferHelper: TRANSFER_FROM_FAILED"
)

type pairKey struct{ a, b common.Address }

func keyOf(a, b common.Address) pairKey {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Router routes swaps through pair accounts whose ledger balances are the
// pool reserves. The native currency is addressed by ledger.NativeAsset in
// paths.
type Router struct {
	chain *ledger.Ledger
	addr  common.Address
	pools map[pairKey]Pool
}

// Deploy creates the registry's tokens if needed, registers the router and
// funds every pair with its genesis reserves.
func Deploy(chain *ledger.Ledger, reg *Registry) (*Router, error) {
	for _, t := range reg.Tokens() {
		if _, ok := chain.Token(t.Address); ok {
			continue
		}
		if _, err := chain.CreateToken(t.Address, t.Symbol, t.Decimals); err != nil {
			return nil, fmt.Errorf("create token %s: %w", t.Symbol, err)
		}
	}

	r := &Router{chain: chain, addr: reg.Router, pools: make(map[pairKey]Pool)}
	for _, p := range reg.Pools() {
		r.pools[keyOf(p.TokenA, p.TokenB)] = p
		if err := chain.Mint(p.TokenA, p.Pair, p.ReserveA); err != nil {
			return nil, fmt.Errorf("seed %s: %w", p.Name, err)
		}
		if err := chain.Mint(p.TokenB, p.Pair, p.ReserveB); err != nil {
			return nil, fmt.Errorf("seed %s: %w", p.Name, err)
		}
	}
	if err := chain.Register(r.addr, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) Address() common.Address { return r.addr }

// Reserves returns the live reserves of the a/b pool in that order.
func (r *Router) Reserves(a, b common.Address) (*big.Int, *big.Int, error) {
	p, ok := r.pools[keyOf(a, b)]
	if !ok {
		return nil, nil, fmt.Errorf("no pool for %s / %s", a.Hex(), b.Hex())
	}
	return r.chain.BalanceOf(a, p.Pair), r.chain.BalanceOf(b, p.Pair), nil
}

// GetAmountsOut quotes amountIn along path.
func (r *Router) GetAmountsOut(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, ledger.Revert(reasonInvalidPath)
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		p, ok := r.pools[keyOf(path[i], path[i+1])]
		if !ok {
			return nil, ledger.Revert(reasonInvalidPath)
		}
		out, err := GetAmountOut(amounts[i], r.chain.BalanceOf(path[i], p.Pair), r.chain.BalanceOf(path[i+1], p.Pair), p.FeeBps)
		if err != nil {
			return nil, ledger.Revert(err.Error())
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// Call dispatches router calldata.
func (r *Router) Call(env *ledger.Env, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ledger.Revert("UniswapV2Router: direct transfer")
	}
	if len(payload) < 4 {
		return nil, ledger.Revert("UniswapV2Router: missing selector")
	}
	method, err := RouterABI.MethodById(payload[:4])
	if err != nil {
		return nil, ledger.Revert("UniswapV2Router: unknown selector")
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, ledger.Revertf("UniswapV2Router: bad arguments for %s", method.Name)
	}

	var amounts []*big.Int
	switch method.Name {
	case "getAmountsOut":
		amounts, err = r.GetAmountsOut(args[0].(*big.Int), args[1].([]common.Address))
	case "swapExactETHForTokens":
		amounts, err = r.swap(env, env.Value, args[0].(*big.Int), args[1].([]common.Address), args[2].(common.Address), args[3].(*big.Int), true, false)
	case "swapExactTokensForTokens":
		amounts, err = r.swap(env, args[0].(*big.Int), args[1].(*big.Int), args[2].([]common.Address), args[3].(common.Address), args[4].(*big.Int), false, false)
	case "swapExactTokensForETH":
		amounts, err = r.swap(env, args[0].(*big.Int), args[1].(*big.Int), args[2].([]common.Address), args[3].(common.Address), args[4].(*big.Int), false, true)
	default:
		err = ledger.Revertf("UniswapV2Router: unsupported method %s", method.Name)
	}
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(amounts)
}

func (r *Router) swap(env *ledger.Env, amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int, nativeIn, nativeOut bool) ([]*big.Int, error) {
	chain := r.chain
	if deadline.Cmp(big.NewInt(chain.Now().Unix())) < 0 {
		return nil, ledger.Revert(reasonExpired)
	}
	if len(path) < 2 ||
		ledger.IsNative(path[0]) != nativeIn ||
		ledger.IsNative(path[len(path)-1]) != nativeOut {
		return nil, ledger.Revert(reasonInvalidPath)
	}
	if !nativeIn && env.Value.Sign() > 0 {
		return nil, ledger.Revert("UniswapV2Router: non-payable")
	}

	amounts, err := r.GetAmountsOut(amountIn, path)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1].Cmp(minOut) < 0 {
		return nil, ledger.Revert(reasonInsufficientOutput)
	}

	first := r.pools[keyOf(path[0], path[1])]
	if nativeIn {
		if err := chain.TransferNative(r.addr, first.Pair, amountIn); err != nil {
			return nil, err
		}
	} else if err := chain.TransferTokenFrom(path[0], r.addr, env.Caller, first.Pair, amountIn); err != nil {
		if errors.Is(err, ledger.ErrOutOfGas) {
			return nil, err
		}
		return nil, ledger.Revert(reasonTransferFrom)
	}

	for i := 0; i < len(path)-1; i++ {
		if err := chain.Charge(GasSwapHop); err != nil {
			return nil, err
		}
		p := r.pools[keyOf(path[i], path[i+1])]
		recipient := to
		if i < len(path)-2 {
			recipient = r.pools[keyOf(path[i+1], path[i+2])].Pair
		}
		if err := chain.Transfer(path[i+1], p.Pair, recipient, amounts[i+1]); err != nil {
			return nil, err
		}
	}

	if err := chain.Emit(r.addr, "Swap", map[string]string{
		"sender":    env.Caller.Hex(),
		"to":        to.Hex(),
		"amountIn":  amountIn.String(),
		"amountOut": amounts[len(amounts)-1].String(),
	}, nil); err != nil {
		return nil, err
	}
	return amounts, nil
}

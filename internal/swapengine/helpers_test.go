package swapengine

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/amm"
	"github.com/aman-zulfiqar/w2w-relay/internal/fees"
	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

var (
	user     = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	stranger = common.HexToAddress("0x000000000000000000000000000000000000bad0")
	dai      = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdc     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	wbtc     = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	native   = ledger.NativeAsset
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func deadline() *big.Int {
	return big.NewInt(time.Now().Add(time.Hour).Unix())
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.RegistryPath = "../config/pools.json"
	e, err := NewEngine(context.Background(), cfg, testLogger(), opts...)
	require.NoError(t, err)
	return e
}

func (e *Engine) operator() common.Address { return e.cfg.OperatorAddress }
func (e *Engine) owner() common.Address    { return e.cfg.OwnerAddress }

func mint(t *testing.T, e *Engine, asset, to common.Address, amount *big.Int) {
	t.Helper()
	_, err := e.Ledger().Transact(to, 0, func() error {
		return e.Ledger().Mint(asset, to, amount)
	})
	require.NoError(t, err)
}

// deployFunded creates user's wallet holding deposit in native currency.
func deployFunded(t *testing.T, e *Engine, deposit *big.Int) common.Address {
	t.Helper()
	mint(t, e, native, user, deposit)
	info, err := e.DeployWallet(context.Background(), user, user, common.Address{}, deposit)
	require.NoError(t, err)
	return info.Address
}

func balance(e *Engine, asset, addr common.Address) *big.Int {
	var v *big.Int
	e.Ledger().View(func() { v = e.Ledger().BalanceOf(asset, addr) })
	return v
}

func quoteOut(t *testing.T, e *Engine, amount *big.Int, path ...common.Address) *big.Int {
	t.Helper()
	var (
		amounts []*big.Int
		err     error
	)
	e.Ledger().View(func() { amounts, err = e.Router().GetAmountsOut(amount, path) })
	require.NoError(t, err)
	return amounts[len(amounts)-1]
}

func requireAmount(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, got, msgAndArgs...)
	require.Equal(t, want.String(), got.String(), msgAndArgs...)
}

func ethForDAIRequest(t *testing.T, e *Engine, w common.Address, amount *big.Int, rate fees.Rate) *SwapRequest {
	t.Helper()
	payload, err := amm.PackSwapExactETHForTokens(big.NewInt(0), []common.Address{native, dai}, e.Executor().Address(), deadline())
	require.NoError(t, err)
	return &SwapRequest{
		Wallet:    w,
		FromAsset: native,
		Amount:    amount,
		ToAsset:   dai,
		MinReturn: big.NewInt(0),
		Fee:       rate,
		GasBudget: DefaultGasBudget,
		Target:    e.Router().Address(),
		Payload:   payload,
	}
}

func daiForETHRequest(t *testing.T, e *Engine, w common.Address, amount *big.Int, rate fees.Rate) *SwapRequest {
	t.Helper()
	payload, err := amm.PackSwapExactTokensForETH(amount, big.NewInt(0), []common.Address{dai, native}, e.Executor().Address(), deadline())
	require.NoError(t, err)
	return &SwapRequest{
		Wallet:    w,
		FromAsset: dai,
		Amount:    amount,
		ToAsset:   native,
		MinReturn: big.NewInt(0),
		Fee:       rate,
		GasBudget: DefaultGasBudget,
		Spender:   e.Router().Address(),
		Target:    e.Router().Address(),
		Payload:   payload,
	}
}

// state captures every balance and fee entry a swap can touch.
func state(e *Engine, accounts ...common.Address) map[string]string {
	out := make(map[string]string)
	accounts = append(accounts, e.Executor().Address(), e.operator(), e.owner(), e.Sink().Address(), user)
	assets := []common.Address{native, dai, usdc, wbtc}
	e.Ledger().View(func() {
		for _, acc := range accounts {
			for _, asset := range assets {
				out[acc.Hex()+"/"+asset.Hex()] = e.Ledger().BalanceOf(asset, acc).String()
			}
		}
		for _, asset := range assets {
			out["fee/"+asset.Hex()] = e.executor.fees.Accrued(asset).String()
		}
	})
	return out
}

func eventNames(events []ledger.Event) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	return names
}

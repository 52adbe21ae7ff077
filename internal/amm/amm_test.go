package amm

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

const testRegistry = `{
  "router": "0x00000000000000000000000000000000000000f1",
  "tokens": [
    {"symbol": "tka", "address": "0x00000000000000000000000000000000000000a1", "decimals": 18},
    {"symbol": "TKB", "address": "0x00000000000000000000000000000000000000b1", "decimals": 6}
  ],
  "pools": [
    {"name": "ETH-TKA", "pair": "0x00000000000000000000000000000000000000c1", "token_a": "ETH", "token_b": "TKA", "reserve_a": "1000", "reserve_b": "1000"},
    {"name": "TKA-TKB", "pair": "0x00000000000000000000000000000000000000c2", "token_a": "TKA", "token_b": "TKB", "reserve_a": "10000", "reserve_b": "20000", "fee_bps": 30}
  ]
}`

var (
	trader = common.HexToAddress("0x0000000000000000000000000000000000000777")
	tka    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tkb    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	farOut = big.NewInt(time.Now().Add(time.Hour).Unix())
)

func newTestRouter(t *testing.T) (*ledger.Ledger, *Router) {
	reg, err := ParseRegistry([]byte(testRegistry))
	require.NoError(t, err)

	chain := ledger.New()
	router, err := Deploy(chain, reg)
	require.NoError(t, err)
	return chain, router
}

func TestGetAmountOut(t *testing.T) {
	out, err := GetAmountOut(big.NewInt(100), big.NewInt(1000), big.NewInt(1000), 30)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(90), out)

	// Matches the 997/1000 form for the default fee.
	in := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	rIn := new(big.Int).Mul(in, big.NewInt(1000))
	rOut := new(big.Int).Mul(in, big.NewInt(2_000_000))
	got, err := GetAmountOut(in, rIn, rOut, DefaultFeeBps)
	require.NoError(t, err)

	inFee := new(big.Int).Mul(in, big.NewInt(997))
	want := new(big.Int).Mul(inFee, rOut)
	want.Quo(want, new(big.Int).Add(new(big.Int).Mul(rIn, big.NewInt(1000)), inFee))
	assert.Equal(t, want, got)

	_, err = GetAmountOut(big.NewInt(0), big.NewInt(1), big.NewInt(1), 30)
	assert.ErrorIs(t, err, ErrInsufficientInput)
	_, err = GetAmountOut(big.NewInt(1), big.NewInt(0), big.NewInt(1), 30)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, big.NewInt(990), ApplySlippage(big.NewInt(1000), 100))
	assert.Equal(t, big.NewInt(1000), ApplySlippage(big.NewInt(1000), 0))
	assert.Zero(t, ApplySlippage(big.NewInt(1000), 10000).Sign())
}

func TestRegistry_LoadBundled(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "config", "pools.json"))
	require.NoError(t, err)

	assert.Equal(t, 4, reg.PoolCount())
	dai, ok := reg.TokenBySymbol("dai")
	require.True(t, ok)

	pool, err := reg.FindPoolByTokens(dai.Address, ledger.NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, "ETH-DAI", pool.Name)
	assert.Equal(t, uint16(30), pool.FeeBps)

	_, err = reg.FindPoolByName("missing")
	assert.Error(t, err)
}

func TestRegistry_ResolveAsset(t *testing.T) {
	reg, err := ParseRegistry([]byte(testRegistry))
	require.NoError(t, err)

	addr, err := reg.ResolveAsset("eth")
	require.NoError(t, err)
	assert.Equal(t, ledger.NativeAsset, addr)

	addr, err = reg.ResolveAsset("TKA")
	require.NoError(t, err)
	assert.Equal(t, tka, addr)

	addr, err = reg.ResolveAsset(tkb.Hex())
	require.NoError(t, err)
	assert.Equal(t, tkb, addr)

	_, err = reg.ResolveAsset("NOPE")
	assert.Error(t, err)

	_, err = ParseRegistry([]byte(`{"router":"nope"}`))
	assert.Error(t, err)
}

func TestRouter_SwapExactETHForTokens(t *testing.T) {
	chain, router := newTestRouter(t)
	require.NoError(t, chain.Mint(ledger.NativeAsset, trader, big.NewInt(500)))

	payload, err := PackSwapExactETHForTokens(big.NewInt(0), []common.Address{ledger.NativeAsset, tka}, trader, farOut)
	require.NoError(t, err)

	ret, err := chain.Call(trader, router.Address(), big.NewInt(100), payload)
	require.NoError(t, err)

	amounts, err := UnpackAmounts("swapExactETHForTokens", ret)
	require.NoError(t, err)
	require.Len(t, amounts, 2)
	assert.Equal(t, big.NewInt(90), amounts[1])

	assert.Equal(t, big.NewInt(400), chain.NativeBalance(trader))
	assert.Equal(t, big.NewInt(90), chain.TokenBalance(tka, trader))
	assert.Zero(t, chain.NativeBalance(router.Address()).Sign())

	resETH, resTKA, err := router.Reserves(ledger.NativeAsset, tka)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1100), resETH)
	assert.Equal(t, big.NewInt(910), resTKA)
}

func TestRouter_SwapExactTokensForTokens(t *testing.T) {
	chain, router := newTestRouter(t)
	require.NoError(t, chain.Mint(tka, trader, big.NewInt(1000)))
	require.NoError(t, chain.Approve(tka, trader, router.Address(), big.NewInt(1000)))

	path := []common.Address{tka, tkb}
	quote, err := router.GetAmountsOut(big.NewInt(1000), path)
	require.NoError(t, err)

	payload, err := PackSwapExactTokensForTokens(big.NewInt(1000), quote[1], path, trader, farOut)
	require.NoError(t, err)
	_, err = chain.Call(trader, router.Address(), nil, payload)
	require.NoError(t, err)

	assert.Equal(t, quote[1], chain.TokenBalance(tkb, trader))
	assert.Zero(t, chain.TokenBalance(tka, trader).Sign())
	assert.Zero(t, chain.Allowance(tka, trader, router.Address()).Sign())
}

func TestRouter_SwapExactTokensForETHMultiHop(t *testing.T) {
	chain, router := newTestRouter(t)
	require.NoError(t, chain.Mint(tkb, trader, big.NewInt(200)))
	require.NoError(t, chain.Approve(tkb, trader, router.Address(), big.NewInt(200)))

	path := []common.Address{tkb, tka, ledger.NativeAsset}
	quote, err := router.GetAmountsOut(big.NewInt(200), path)
	require.NoError(t, err)
	require.Len(t, quote, 3)

	payload, err := PackSwapExactTokensForETH(big.NewInt(200), big.NewInt(0), path, trader, farOut)
	require.NoError(t, err)
	_, err = chain.Call(trader, router.Address(), nil, payload)
	require.NoError(t, err)
	assert.Equal(t, quote[2], chain.NativeBalance(trader))
}

func TestRouter_Reverts(t *testing.T) {
	chain, router := newTestRouter(t)
	require.NoError(t, chain.Mint(ledger.NativeAsset, trader, big.NewInt(500)))
	require.NoError(t, chain.Mint(tka, trader, big.NewInt(100)))

	path := []common.Address{ledger.NativeAsset, tka}
	tests := []struct {
		name    string
		value   *big.Int
		payload func() ([]byte, error)
		reason  string
	}{
		{
			name:  "insufficient output",
			value: big.NewInt(100),
			payload: func() ([]byte, error) {
				return PackSwapExactETHForTokens(big.NewInt(91), path, trader, farOut)
			},
			reason: "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT",
		},
		{
			name:  "expired",
			value: big.NewInt(100),
			payload: func() ([]byte, error) {
				return PackSwapExactETHForTokens(big.NewInt(0), path, trader, big.NewInt(1))
			},
			reason: "UniswapV2Router: EXPIRED",
		},
		{
			name:  "no allowance",
			value: nil,
			payload: func() ([]byte, error) {
				return PackSwapExactTokensForETH(big.NewInt(10), big.NewInt(0), []common.Address{tka, ledger.NativeAsset}, trader, farOut)
			},
			reason: "TransferHelper: TRANSFER_FROM_FAILED",
		},
		{
			name:  "wrong path shape",
			value: nil,
			payload: func() ([]byte, error) {
				return PackSwapExactTokensForTokens(big.NewInt(10), big.NewInt(0), path, trader, farOut)
			},
			reason: "UniswapV2Router: INVALID_PATH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.payload()
			require.NoError(t, err)

			ok, data, err := chain.TryCall(trader, router.Address(), tt.value, payload)
			require.NoError(t, err)
			assert.False(t, ok)

			reason, decoded := ledger.DecodeRevert(data)
			require.True(t, decoded)
			assert.Equal(t, tt.reason, reason)
		})
	}

	assert.Equal(t, big.NewInt(500), chain.NativeBalance(trader))
	assert.Equal(t, big.NewInt(100), chain.TokenBalance(tka, trader))
}

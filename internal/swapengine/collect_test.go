package swapengine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withAccruedFee runs one fee-bearing swap so the executor holds DAI fees.
func withAccruedFee(t *testing.T) (*Engine, common.Address, *big.Int) {
	t.Helper()
	e := newTestEngine(t)
	w := deployFunded(t, e, eth(10))
	out, err := e.Executor().MakeSwapETHForTokens(context.Background(), e.operator(), ethForDAIRequest(t, e, w, eth(5), 50))
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Positive(t, out.Fee.Sign())
	return e, w, out.Fee
}

func TestCollectTokens_Bound(t *testing.T) {
	ctx := context.Background()
	e, w, fee := withAccruedFee(t)
	exec := e.Executor().Address()
	mint(t, e, dai, exec, big.NewInt(500))

	requireAmount(t, big.NewInt(500), e.Executor().Extra(dai))

	before := state(e, w)
	_, err := e.Executor().CollectTokens(ctx, e.owner(), dai, big.NewInt(501), user)
	require.ErrorIs(t, err, ErrInsufficientExtraTokens)
	assert.Equal(t, before, state(e, w))

	res, err := e.Executor().CollectTokens(ctx, e.owner(), dai, big.NewInt(500), user)
	require.NoError(t, err)
	assert.Contains(t, eventNames(res.Events), EventCollected)
	requireAmount(t, fee, balance(e, dai, exec), "only the fee remains")
	requireAmount(t, fee, e.Executor().Fees(dai), "ledger untouched")
	requireAmount(t, big.NewInt(500), balance(e, dai, user))

	_, err = e.Executor().CollectTokens(ctx, e.owner(), dai, big.NewInt(1), user)
	require.ErrorIs(t, err, ErrInsufficientExtraTokens, "fees are never collectible")
}

func TestCollectETH_Bound(t *testing.T) {
	ctx := context.Background()
	e, w, _ := withAccruedFee(t)
	exec := e.Executor().Address()
	mint(t, e, native, exec, eth(1))

	before := state(e, w)
	_, err := e.Executor().CollectETH(ctx, e.owner(), eth(2), user)
	require.ErrorIs(t, err, ErrInsufficientExtraETH)
	assert.Equal(t, before, state(e, w))

	_, err = e.Executor().CollectETH(ctx, e.owner(), eth(1), stranger)
	require.NoError(t, err)
	assert.Zero(t, balance(e, native, exec).Sign())
	requireAmount(t, eth(1), balance(e, native, stranger))
}

func TestCollect_Validation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Executor().CollectTokens(ctx, e.owner(), native, big.NewInt(1), user)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.Executor().CollectETH(ctx, e.owner(), nil, user)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.Executor().CollectETH(ctx, e.owner(), big.NewInt(1), common.Address{})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAdmin_OnlyOwner(t *testing.T) {
	ctx := context.Background()
	e, w, _ := withAccruedFee(t)
	mint(t, e, native, e.Executor().Address(), eth(1))
	before := state(e, w, stranger)

	_, err := e.Executor().CollectTokens(ctx, stranger, dai, big.NewInt(0), stranger)
	require.ErrorIs(t, err, ErrOnlyOwner)
	_, err = e.Executor().CollectETH(ctx, e.operator(), eth(1), stranger)
	require.ErrorIs(t, err, ErrOnlyOwner)
	_, err = e.Executor().SendFeesToBuyBacker(ctx, stranger, nil)
	require.ErrorIs(t, err, ErrOnlyOwner)
	require.ErrorIs(t, e.Executor().SetOperator(ctx, stranger, stranger), ErrOnlyOwner)
	require.ErrorIs(t, e.Executor().SetFeeSink(ctx, stranger, stranger), ErrOnlyOwner)

	assert.Equal(t, before, state(e, w, stranger))
	assert.Equal(t, e.operator(), e.Executor().Operator())
	assert.Equal(t, e.Sink().Address(), e.Executor().FeeSink())
	assert.Equal(t, "W2W:Only owner", ErrOnlyOwner.Error())
}

func TestSetOperator(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	w := deployFunded(t, e, eth(10))
	next := common.HexToAddress("0x00000000000000000000000000000000000a0003")

	require.ErrorIs(t, e.Executor().SetOperator(ctx, e.owner(), common.Address{}), ErrInvalidRequest)
	require.NoError(t, e.Executor().SetOperator(ctx, e.owner(), next))
	assert.Equal(t, next, e.Executor().Operator())

	_, err := e.Executor().MakeSwapETHForTokens(ctx, e.operator(), ethForDAIRequest(t, e, w, eth(1), 0))
	require.ErrorIs(t, err, ErrOnlyExecutor)

	out, err := e.Executor().MakeSwapETHForTokens(ctx, next, ethForDAIRequest(t, e, w, eth(1), 0))
	require.NoError(t, err)
	assert.True(t, out.Success)
	requireAmount(t, out.GasReimbursed, balance(e, native, next), "gas goes to the submitting operator")
}

func TestSendFeesToBuyBacker(t *testing.T) {
	ctx := context.Background()
	e, _, fee := withAccruedFee(t)
	sink := e.Sink().Address()

	t.Run("selected asset without fees is skipped", func(t *testing.T) {
		res, err := e.Executor().SendFeesToBuyBacker(ctx, e.owner(), []common.Address{usdc})
		require.NoError(t, err)
		assert.Empty(t, res.Swept)
	})

	t.Run("sweeps accrued fees", func(t *testing.T) {
		res, err := e.Executor().SendFeesToBuyBacker(ctx, e.owner(), []common.Address{dai})
		require.NoError(t, err)
		assert.Equal(t, fee.String(), res.Swept[dai])
		requireAmount(t, fee, e.Sink().Received(dai))
		assert.Zero(t, e.Executor().Fees(dai).Sign())
		assert.Zero(t, balance(e, dai, e.Executor().Address()).Sign())
		assert.Equal(t, sink, res.Recipient)
	})

	t.Run("second sweep moves nothing", func(t *testing.T) {
		res, err := e.Executor().SendFeesToBuyBacker(ctx, e.owner(), nil)
		require.NoError(t, err)
		assert.Empty(t, res.Swept)
		requireAmount(t, fee, e.Sink().Received(dai))
	})
}

func TestSetFeeSink(t *testing.T) {
	ctx := context.Background()
	e, _, fee := withAccruedFee(t)
	other := common.HexToAddress("0x00000000000000000000000000000000000b0b02")

	require.NoError(t, e.Executor().SetFeeSink(ctx, e.owner(), other))
	res, err := e.Executor().SendFeesToBuyBacker(ctx, e.owner(), nil)
	require.NoError(t, err)
	assert.Equal(t, other, res.Recipient)
	requireAmount(t, fee, balance(e, dai, other))
	assert.Zero(t, e.Sink().Received(dai).Sign())
}

package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

var (
	user     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	executor = common.HexToAddress("0x0000000000000000000000000000000000000002")
	referrer = common.HexToAddress("0x0000000000000000000000000000000000000003")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000004")
	sink     = common.HexToAddress("0x0000000000000000000000000000000000000005")
	factoryA = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type fixture struct {
	chain   *ledger.Ledger
	factory *Factory
	wallet  *Wallet
}

func newFixture(t *testing.T) *fixture {
	chain := ledger.New()
	_, err := chain.CreateToken(tokenA, "TKA", 18)
	require.NoError(t, err)
	require.NoError(t, chain.Mint(ledger.NativeAsset, user, big.NewInt(1000)))
	require.NoError(t, chain.Mint(tokenA, user, big.NewInt(500)))

	factory := NewFactory(chain, factoryA)
	w, err := factory.Deploy(user, user, executor, referrer, big.NewInt(100))
	require.NoError(t, err)

	return &fixture{chain: chain, factory: factory, wallet: w}
}

func TestWallet_InitOnce(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.wallet.Initialized())
	assert.Equal(t, user, f.wallet.Owner())
	assert.Equal(t, executor, f.wallet.Controller())
	assert.Equal(t, referrer, f.wallet.Referrer())
	assert.Equal(t, big.NewInt(100), f.wallet.Balance(ledger.NativeAsset))
	assert.Equal(t, big.NewInt(900), f.chain.NativeBalance(user))

	err := f.wallet.Init(stranger, stranger, stranger, stranger, nil)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Equal(t, user, f.wallet.Owner())
}

func TestWallet_DemandNative(t *testing.T) {
	f := newFixture(t)

	err := f.wallet.DemandNative(stranger, stranger, big.NewInt(1))
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = f.wallet.DemandNative(executor, sink, big.NewInt(101))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, f.wallet.DemandNative(executor, sink, big.NewInt(40)))
	require.NoError(t, f.wallet.DemandNative(user, user, big.NewInt(10)))
	assert.Equal(t, big.NewInt(50), f.wallet.Balance(ledger.NativeAsset))
	assert.Equal(t, big.NewInt(40), f.chain.NativeBalance(sink))
}

func TestWallet_DemandToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.chain.TransferToken(tokenA, user, f.wallet.Address(), big.NewInt(100)))

	require.NoError(t, f.wallet.DemandToken(executor, tokenA, sink, big.NewInt(60)))
	assert.Equal(t, big.NewInt(40), f.wallet.Balance(tokenA))
	assert.Equal(t, big.NewInt(60), f.chain.TokenBalance(tokenA, sink))

	// Short on its own balance and no owner allowance.
	err := f.wallet.DemandToken(executor, tokenA, sink, big.NewInt(50))
	assert.ErrorIs(t, err, ErrTokenTransferFromFail)

	var re *ledger.RevertError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ERC20 transferFrom failed", re.Reason)

	// With an allowance the full amount comes from the owner.
	require.NoError(t, f.chain.Approve(tokenA, user, f.wallet.Address(), big.NewInt(50)))
	require.NoError(t, f.wallet.DemandToken(executor, tokenA, sink, big.NewInt(50)))
	assert.Equal(t, big.NewInt(40), f.wallet.Balance(tokenA))
	assert.Equal(t, big.NewInt(350), f.chain.TokenBalance(tokenA, user))
	assert.Equal(t, big.NewInt(110), f.chain.TokenBalance(tokenA, sink))
}

func TestWallet_DemandArbitraryCall(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.chain.TransferToken(tokenA, user, f.wallet.Address(), big.NewInt(10)))

	payload, err := ledger.PackTransfer(sink, big.NewInt(4))
	require.NoError(t, err)

	_, _, err = f.wallet.DemandArbitraryCall(stranger, tokenA, nil, payload)
	assert.ErrorIs(t, err, ErrUnauthorized)

	ok, _, err := f.wallet.DemandArbitraryCall(executor, tokenA, nil, payload)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(4), f.chain.TokenBalance(tokenA, sink))

	payload, err = ledger.PackTransfer(sink, big.NewInt(1000))
	require.NoError(t, err)
	ok, ret, err := f.wallet.DemandArbitraryCall(executor, tokenA, nil, payload)
	require.NoError(t, err)
	assert.False(t, ok)
	reason, decoded := ledger.DecodeRevert(ret)
	require.True(t, decoded)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", reason)
}

func TestWallet_DemandBatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.chain.TransferToken(tokenA, user, f.wallet.Address(), big.NewInt(25)))

	err := f.wallet.DemandBatch(stranger, []common.Address{ledger.NativeAsset}, stranger)
	assert.ErrorIs(t, err, ErrUnauthorized)

	unused := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	require.NoError(t, f.wallet.DemandBatch(user, []common.Address{ledger.NativeAsset, tokenA, unused}, sink))
	assert.Zero(t, f.wallet.Balance(ledger.NativeAsset).Sign())
	assert.Zero(t, f.wallet.Balance(tokenA).Sign())
	assert.Equal(t, big.NewInt(100), f.chain.NativeBalance(sink))
	assert.Equal(t, big.NewInt(25), f.chain.TokenBalance(tokenA, sink))
}

func TestWallet_ChangeParam(t *testing.T) {
	f := newFixture(t)
	newExec := common.HexToAddress("0x00000000000000000000000000000000000000e2")

	assert.ErrorIs(t, f.wallet.ChangeController(executor, newExec), ErrOnlyOwner)
	assert.ErrorIs(t, f.wallet.ChangeController(user, common.Address{}), ErrZeroAddress)
	assert.ErrorIs(t, f.wallet.ChangeParam(user, ParamReferrer, stranger), ErrCannotUpdateReferrer)
	assert.ErrorIs(t, f.wallet.ChangeParam(user, "fee", stranger), ErrUnknownParam)

	receipt, err := f.chain.Transact(user, 0, func() error {
		return f.wallet.ChangeController(user, newExec)
	})
	require.NoError(t, err)
	assert.Equal(t, newExec, f.wallet.Controller())
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "ParamUpdated", receipt.Events[0].Name)
	assert.Equal(t, executor.Hex(), receipt.Events[0].Field("old"))
	assert.Equal(t, newExec.Hex(), receipt.Events[0].Field("new"))

	// The old controller lost its capability.
	assert.ErrorIs(t, f.wallet.DemandNative(executor, executor, big.NewInt(1)), ErrUnauthorized)

	require.NoError(t, f.wallet.ChangeOwner(user, stranger))
	assert.Equal(t, stranger, f.wallet.Owner())
	assert.Equal(t, referrer, f.wallet.Referrer())
}

func TestWallet_ParamChangeRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.chain.Transact(user, 0, func() error {
		require.NoError(t, f.wallet.ChangeOwner(user, stranger))
		return ledger.Revert("abort")
	})
	assert.Error(t, err)
	assert.Equal(t, user, f.wallet.Owner())
}

func TestWallet_AcceptsBareTransfers(t *testing.T) {
	f := newFixture(t)

	_, err := f.chain.Call(user, f.wallet.Address(), big.NewInt(5), nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(105), f.wallet.Balance(ledger.NativeAsset))

	_, err = f.chain.Call(user, f.wallet.Address(), nil, []byte{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestFactory_Deploy(t *testing.T) {
	f := newFixture(t)

	got, ok := f.factory.WalletOf(user)
	require.True(t, ok)
	assert.Equal(t, f.wallet, got)

	byAddr, ok := f.factory.At(f.wallet.Address())
	require.True(t, ok)
	assert.Equal(t, f.wallet, byAddr)

	_, err := f.factory.Deploy(user, user, executor, referrer, nil)
	assert.ErrorIs(t, err, ErrWalletExists)

	// Anyone may deploy on behalf of another user.
	other, err := f.factory.Deploy(user, stranger, executor, common.Address{}, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, stranger, other.Owner())
	assert.NotEqual(t, f.wallet.Address(), other.Address())
	assert.Equal(t, big.NewInt(7), other.Balance(ledger.NativeAsset))
	assert.Equal(t, []common.Address{user, stranger}, f.factory.Users())
}

func TestFactory_DeployRollsBack(t *testing.T) {
	chain := ledger.New()
	factory := NewFactory(chain, factoryA)

	// The caller cannot fund the deposit, so the whole deploy reverts.
	_, err := chain.Transact(user, 0, func() error {
		_, err := factory.Deploy(user, user, executor, referrer, big.NewInt(1))
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, ok := factory.WalletOf(user)
	assert.False(t, ok)
	assert.False(t, chain.HasContract(crypto.CreateAddress(factoryA, 0)))

	w, err := factory.Deploy(user, user, executor, referrer, nil)
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(factoryA, 0), w.Address())
}

package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

var usdc = common.HexToAddress("0x00000000000000000000000000000000000000cc")

func TestRate_Validate(t *testing.T) {
	assert.NoError(t, Rate(0).Validate())
	assert.NoError(t, MaxRate.Validate())

	err := Rate(51).Validate()
	assert.ErrorIs(t, err, ErrFeeTooHigh)
	assert.Contains(t, err.Error(), "W2W:Fee is too high")
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		gross int64
		rate  Rate
		fee   int64
	}{
		{"zero rate", 1_000_000, 0, 0},
		{"quarter percent", 1_000_000, 25, 2500},
		{"truncates down", 399, 25, 0},
		{"truncates partial", 1_999, 50, 9},
		{"zero gross", 0, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := Compute(big.NewInt(tt.gross), tt.rate)
			assert.Equal(t, tt.fee, fee.Int64())
			assert.Equal(t, tt.gross-tt.fee, net.Int64())
		})
	}
}

func TestLedger_CreditDebit(t *testing.T) {
	f := NewLedger(ledger.New())

	require.NoError(t, f.Credit(usdc, big.NewInt(0)))
	assert.Empty(t, f.Assets())

	require.NoError(t, f.Credit(usdc, big.NewInt(40)))
	require.NoError(t, f.Credit(ledger.NativeAsset, big.NewInt(3)))
	assert.Equal(t, big.NewInt(40), f.Accrued(usdc))
	assert.Len(t, f.Assets(), 2)

	require.NoError(t, f.Debit(usdc, big.NewInt(15)))
	assert.Equal(t, big.NewInt(25), f.Accrued(usdc))

	err := f.Debit(usdc, big.NewInt(26))
	assert.ErrorIs(t, err, ErrInsufficientFee)

	snap := f.Snapshot()
	snap[usdc].SetInt64(999)
	assert.Equal(t, big.NewInt(25), f.Accrued(usdc))
}

func TestLedger_RollsBackWithTransaction(t *testing.T) {
	chain := ledger.New()
	f := NewLedger(chain)
	require.NoError(t, f.Credit(usdc, big.NewInt(10)))

	abort := errors.New("abort")
	_, err := chain.Transact(common.Address{}, 0, func() error {
		require.NoError(t, f.Credit(usdc, big.NewInt(5)))
		require.NoError(t, f.Credit(ledger.NativeAsset, big.NewInt(1)))
		return abort
	})
	assert.ErrorIs(t, err, abort)

	assert.Equal(t, big.NewInt(10), f.Accrued(usdc))
	assert.Equal(t, []common.Address{usdc}, f.Assets())
}

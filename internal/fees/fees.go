// Package fees holds the executor's per-asset accrued protocol fees.
package fees

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

// MaxRate is the fee ceiling in basis points (0.50%).
const MaxRate Rate = 50

const bpsDenominator = 10000

var (
	ErrFeeTooHigh      = errors.New("W2W:Fee is too high")
	ErrInsufficientFee = errors.New("fee debit exceeds accrued amount")
)

// Rate is a fee rate in basis points.
type Rate uint16

// Validate enforces the fee ceiling.
func (r Rate) Validate() error {
	if r > MaxRate {
		return fmt.Errorf("%w: %d bps > %d bps", ErrFeeTooHigh, r, MaxRate)
	}
	return nil
}

func (r Rate) String() string {
	return fmt.Sprintf("%dbps", uint16(r))
}

// Compute splits gross into the truncated fee and the net remainder.
func Compute(gross *big.Int, rate Rate) (fee, net *big.Int) {
	fee = new(big.Int).Mul(gross, big.NewInt(int64(rate)))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	net = new(big.Int).Sub(gross, fee)
	return fee, net
}

// Reader is the read side consumed by the buy-back aggregator.
type Reader interface {
	Accrued(asset common.Address) *big.Int
}

// Ledger tracks uncollected fees per asset. Mutations are journaled on the
// underlying asset ledger and roll back with the enclosing transaction.
type Ledger struct {
	chain   *ledger.Ledger
	accrued map[common.Address]*big.Int
}

func NewLedger(chain *ledger.Ledger) *Ledger {
	return &Ledger{
		chain:   chain,
		accrued: make(map[common.Address]*big.Int),
	}
}

// Credit adds amount to asset's accrued fee. Zero is a no-op.
func (f *Ledger) Credit(asset common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ledger.ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := f.chain.Charge(ledger.GasStorageWrite); err != nil {
		return err
	}
	f.set(asset, new(big.Int).Add(f.Accrued(asset), amount))
	return nil
}

// Debit removes amount from asset's accrued fee.
func (f *Ledger) Debit(asset common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ledger.ErrNegativeAmount
	}
	cur := f.Accrued(asset)
	if cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s of %s", ErrInsufficientFee, amount, cur)
	}
	if err := f.chain.Charge(ledger.GasStorageWrite); err != nil {
		return err
	}
	f.set(asset, cur.Sub(cur, amount))
	return nil
}

// Accrued returns a copy of the accrued fee for asset.
func (f *Ledger) Accrued(asset common.Address) *big.Int {
	if v, ok := f.accrued[asset]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Assets lists every asset that has ever accrued a fee, in address order.
func (f *Ledger) Assets() []common.Address {
	out := make([]common.Address, 0, len(f.accrued))
	for asset := range f.accrued {
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}

// Snapshot copies the current accrued amounts.
func (f *Ledger) Snapshot() map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(f.accrued))
	for asset, v := range f.accrued {
		out[asset] = new(big.Int).Set(v)
	}
	return out
}

func (f *Ledger) set(asset common.Address, v *big.Int) {
	prev, ok := f.accrued[asset]
	f.chain.Record(func() {
		if ok {
			f.accrued[asset] = prev
		} else {
			delete(f.accrued, asset)
		}
	})
	f.accrued[asset] = v
}

package swapengine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

// CollectTokens sends token balance that is not accounted as fees.
func (e *Executor) CollectTokens(ctx context.Context, caller, token common.Address, amount *big.Int, to common.Address) (*CollectResult, error) {
	if ledger.IsNative(token) {
		return nil, fmt.Errorf("%w: use CollectETH for the native asset", ErrInvalidRequest)
	}
	return e.collect(ctx, caller, token, amount, to, ErrInsufficientExtraTokens)
}

// CollectETH sends native balance that is not accounted as fees.
func (e *Executor) CollectETH(ctx context.Context, caller common.Address, amount *big.Int, to common.Address) (*CollectResult, error) {
	return e.collect(ctx, caller, ledger.NativeAsset, amount, to, ErrInsufficientExtraETH)
}

func (e *Executor) collect(ctx context.Context, caller, asset common.Address, amount *big.Int, to common.Address, errExtra error) (*CollectResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() < 0 || to == (common.Address{}) {
		return nil, fmt.Errorf("%w: amount and recipient required", ErrInvalidRequest)
	}

	receipt, err := e.chain.Transact(caller, e.adminGasLimit, func() error {
		if caller != e.owner {
			return ErrOnlyOwner
		}
		extra := e.extra(asset)
		if amount.Cmp(extra) > 0 {
			return fmt.Errorf("%w: requested %s, extra %s", errExtra, amount, extra)
		}
		if err := e.pay(asset, to, amount); err != nil {
			return err
		}
		return e.chain.Emit(e.addr, EventCollected, map[string]string{
			"asset":  asset.Hex(),
			"amount": amount.String(),
			"to":     to.Hex(),
		}, nil)
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"asset":  asset.Hex(),
		"amount": amount.String(),
		"to":     to.Hex(),
	}).Info("collected extra balance")

	return &CollectResult{
		Asset:     asset,
		Amount:    amount,
		Recipient: to,
		GasUsed:   receipt.GasUsed,
		Events:    receipt.Events,
	}, nil
}

// Extra returns the collectible balance of asset: holdings minus accrued
// fees.
func (e *Executor) Extra(asset common.Address) *big.Int {
	var v *big.Int
	e.chain.View(func() { v = e.extra(asset) })
	return v
}

func (e *Executor) extra(asset common.Address) *big.Int {
	extra := new(big.Int).Sub(e.chain.BalanceOf(asset, e.addr), e.fees.Accrued(asset))
	if extra.Sign() < 0 {
		extra.SetInt64(0)
	}
	return extra
}

// SendFeesToBuyBacker moves every listed asset's accrued fee to the fee
// sink and zeroes its ledger entry. An empty list sweeps every asset.
func (e *Executor) SendFeesToBuyBacker(ctx context.Context, caller common.Address, assets []common.Address) (*CollectResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	swept := make(map[common.Address]string)
	var sink common.Address
	receipt, err := e.chain.Transact(caller, e.adminGasLimit, func() error {
		if caller != e.owner {
			return ErrOnlyOwner
		}
		if e.feeSink == (common.Address{}) {
			return ErrNoFeeSink
		}
		sink = e.feeSink
		if len(assets) == 0 {
			assets = e.fees.Assets()
		}
		for _, asset := range assets {
			amount := e.fees.Accrued(asset)
			if amount.Sign() == 0 {
				continue
			}
			if err := e.fees.Debit(asset, amount); err != nil {
				return err
			}
			if err := e.pay(asset, sink, amount); err != nil {
				return fmt.Errorf("send %s fees: %w", asset.Hex(), err)
			}
			if err := e.chain.Emit(e.addr, EventFeesSent, map[string]string{
				"asset":  asset.Hex(),
				"amount": amount.String(),
				"sink":   sink.Hex(),
			}, nil); err != nil {
				return err
			}
			swept[asset] = amount.String()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"sink":   sink.Hex(),
		"assets": len(swept),
	}).Info("fees sent to buy-backer")

	return &CollectResult{
		Recipient: sink,
		Swept:     swept,
		GasUsed:   receipt.GasUsed,
		Events:    receipt.Events,
	}, nil
}

// SetOperator rotates the address allowed to submit swaps.
func (e *Executor) SetOperator(ctx context.Context, caller, operator common.Address) error {
	return e.setParam(ctx, caller, "operator", operator, &e.operator)
}

// SetFeeSink changes where swept fees are sent.
func (e *Executor) SetFeeSink(ctx context.Context, caller, sink common.Address) error {
	return e.setParam(ctx, caller, "feeSink", sink, &e.feeSink)
}

func (e *Executor) setParam(ctx context.Context, caller common.Address, name string, value common.Address, field *common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if value == (common.Address{}) {
		return fmt.Errorf("%w: %s must be non-zero", ErrInvalidRequest, name)
	}
	_, err := e.chain.Transact(caller, e.adminGasLimit, func() error {
		if caller != e.owner {
			return ErrOnlyOwner
		}
		old := *field
		*field = value
		e.chain.Record(func() { *field = old })
		return e.chain.Emit(e.addr, EventParamChanged, map[string]string{
			"param": name,
			"old":   old.Hex(),
			"new":   value.Hex(),
		}, nil)
	})
	return err
}

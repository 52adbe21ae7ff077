package swapengine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/w2w-relay/internal/fees"
	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
	"github.com/aman-zulfiqar/w2w-relay/internal/wallet"
)

// GasReimburseOverhead covers the reimbursement transfer itself, which
// runs after gas usage is measured.
const GasReimburseOverhead uint64 = ledger.GasCall + ledger.GasNativeTransfer + ledger.GasEvent

// WalletResolver maps a wallet address to its proxy account.
type WalletResolver interface {
	At(addr common.Address) (*wallet.Wallet, bool)
}

// ExecutorConfig holds the executor's identities.
type ExecutorConfig struct {
	Address  common.Address
	Owner    common.Address
	Operator common.Address
	FeeSink  common.Address

	GasPrice      *big.Int
	AdminGasLimit uint64
}

// Executor is the relay contract: it pulls funds from user wallets, runs
// operator-supplied swap calls, withholds the protocol fee and pays out.
type Executor struct {
	chain   *ledger.Ledger
	fees    *fees.Ledger
	wallets WalletResolver
	guard   *Guard
	log     *logrus.Logger

	addr          common.Address
	owner         common.Address
	operator      common.Address
	feeSink       common.Address
	adminGasLimit uint64
}

// NewExecutor registers the executor on the ledger.
func NewExecutor(chain *ledger.Ledger, wallets WalletResolver, cfg ExecutorConfig, log *logrus.Logger) (*Executor, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Address == (common.Address{}) || cfg.Owner == (common.Address{}) || cfg.Operator == (common.Address{}) {
		return nil, fmt.Errorf("%w: executor, owner and operator addresses are required", ErrInvalidRequest)
	}

	e := &Executor{
		chain:         chain,
		fees:          fees.NewLedger(chain),
		wallets:       wallets,
		guard:         NewGuard(cfg.GasPrice),
		log:           log,
		addr:          cfg.Address,
		owner:         cfg.Owner,
		operator:      cfg.Operator,
		feeSink:       cfg.FeeSink,
		adminGasLimit: cfg.AdminGasLimit,
	}
	if err := chain.Register(cfg.Address, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Call accepts bare native transfers (wallet pulls, router payouts).
func (e *Executor) Call(_ *ledger.Env, payload []byte) ([]byte, error) {
	if len(payload) > 0 {
		return nil, ledger.Revert("W2W: unsupported call")
	}
	return nil, nil
}

// MakeSwapETHForTokens swaps a wallet's native currency for a token.
func (e *Executor) MakeSwapETHForTokens(ctx context.Context, caller common.Address, req *SwapRequest) (*SwapOutcome, error) {
	return e.run(ctx, ShapeETHForTokens, caller, req)
}

// MakeSwap swaps one token held by a wallet for another.
func (e *Executor) MakeSwap(ctx context.Context, caller common.Address, req *SwapRequest) (*SwapOutcome, error) {
	return e.run(ctx, ShapeTokens, caller, req)
}

// MakeSwapTokensForETH swaps a wallet's token for native currency.
func (e *Executor) MakeSwapTokensForETH(ctx context.Context, caller common.Address, req *SwapRequest) (*SwapOutcome, error) {
	return e.run(ctx, ShapeTokensForETH, caller, req)
}

// Swap dispatches on shape.
func (e *Executor) Swap(ctx context.Context, shape Shape, caller common.Address, req *SwapRequest) (*SwapOutcome, error) {
	switch shape {
	case ShapeETHForTokens:
		return e.MakeSwapETHForTokens(ctx, caller, req)
	case ShapeTokens:
		return e.MakeSwap(ctx, caller, req)
	case ShapeTokensForETH:
		return e.MakeSwapTokensForETH(ctx, caller, req)
	}
	return nil, fmt.Errorf("%w: unknown shape %q", ErrInvalidRequest, shape)
}

func (e *Executor) run(ctx context.Context, shape Shape, caller common.Address, req *SwapRequest) (*SwapOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}

	start := time.Now()
	out := &SwapOutcome{
		ExecutionID: uuid.NewString(),
		Shape:       shape,
		Wallet:      req.Wallet,
		FromAsset:   req.FromAsset,
		ToAsset:     req.ToAsset,
		Amount:      req.Amount,
		FeeRate:     req.Fee,
	}
	logger := e.log.WithFields(logrus.Fields{
		"execution_id": out.ExecutionID,
		"shape":        shape,
		"wallet":       req.Wallet.Hex(),
	})

	receipt, err := e.chain.Transact(caller, req.GasBudget, func() error {
		return e.execute(shape, caller, req, out)
	})
	if err != nil {
		logger.WithError(err).Warn("swap aborted")
		return nil, err
	}

	out.GasUsed = receipt.GasUsed
	out.Events = receipt.Events
	out.Duration = time.Since(start)
	out.DoneAt = time.Now()

	if out.Success {
		logger.WithFields(logrus.Fields{
			"gross": out.GrossOutput.String(),
			"fee":   out.Fee.String(),
			"net":   out.NetDelivered.String(),
		}).Info("swap settled")
	} else {
		logger.WithField("reason", out.Reason).Warn("swap soft-failed")
	}
	return out, nil
}

// execute runs inside the transaction. Errors returned here abort the
// whole request; soft failures are recorded on out instead.
func (e *Executor) execute(shape Shape, caller common.Address, req *SwapRequest, out *SwapOutcome) error {
	// 1. Authorize
	if caller != e.operator {
		return ErrOnlyExecutor
	}
	if err := ValidateRequest(shape, req); err != nil {
		return err
	}
	w, ok := e.wallets.At(req.Wallet)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWallet, req.Wallet.Hex())
	}
	if w.Controller() != e.addr {
		return fmt.Errorf("%w: executor is not the wallet controller", wallet.ErrUnauthorized)
	}
	minReturn := req.MinReturn
	if minReturn == nil {
		minReturn = new(big.Int)
	}

	// 2. Gas-budget guard
	nativeSource := new(big.Int)
	if shape.nativeSource() {
		nativeSource.Set(req.Amount)
	}
	if err := e.guard.Check(e.chain.NativeBalance(w.Address()), nativeSource, req.GasBudget).Err(); err != nil {
		return err
	}

	out.GrossOutput = new(big.Int)
	out.Fee = new(big.Int)
	out.NetDelivered = new(big.Int)
	out.SourceSpent = new(big.Int)

	// 3. Pull the source into the executor, execute and settle. A failure
	// anywhere in here rolls back the pull too.
	err := e.chain.Try(func() error {
		var err error
		if shape.nativeSource() {
			err = w.DemandNative(e.addr, e.addr, req.Amount)
		} else {
			err = w.DemandToken(e.addr, req.FromAsset, e.addr, req.Amount)
		}
		if err != nil {
			return err
		}
		return e.swapAndSettle(shape, w, req, minReturn, out)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrOutOfGas) {
			return err
		}
		if err := e.softFail(req, err, out); err != nil {
			return err
		}
	}

	// 4. Reimburse the operator's gas from the wallet
	return e.reimburseGas(w, req.GasBudget, out)
}

func (e *Executor) swapAndSettle(shape Shape, w *wallet.Wallet, req *SwapRequest, minReturn *big.Int, out *SwapOutcome) error {
	srcBefore := e.chain.BalanceOf(req.FromAsset, e.addr)
	dstBefore := e.chain.BalanceOf(req.ToAsset, e.addr)

	var value *big.Int
	if shape.nativeSource() {
		value = req.Amount
	} else if err := e.approve(req.FromAsset, req.Spender, req.Amount); err != nil {
		return err
	}

	ok, ret, err := e.chain.TryCall(e.addr, req.Target, value, req.Payload)
	if err != nil {
		return err
	}
	if !ok {
		return &ledger.RevertError{Reason: decodeReason(ret), Data: ret}
	}

	if !shape.nativeSource() {
		if err := e.approve(req.FromAsset, req.Spender, new(big.Int)); err != nil {
			return err
		}
	}

	srcAfter := e.chain.BalanceOf(req.FromAsset, e.addr)
	dstAfter := e.chain.BalanceOf(req.ToAsset, e.addr)

	spent := new(big.Int).Sub(srcBefore, srcAfter)
	if spent.Cmp(req.Amount) > 0 {
		return ledger.Revert(ReasonSourceOverspent)
	}
	gross := new(big.Int).Sub(dstAfter, dstBefore)
	if gross.Sign() < 0 {
		return ledger.Revert(ReasonDestinationDrained)
	}
	if gross.Cmp(minReturn) < 0 {
		return ledger.Revert(ReasonLessThanMinimum)
	}

	if refund := new(big.Int).Sub(req.Amount, spent); refund.Sign() > 0 {
		if err := e.pay(req.FromAsset, w.Address(), refund); err != nil {
			return err
		}
	}

	// Settlement
	fee, net := fees.Compute(gross, req.Fee)
	if err := e.fees.Credit(req.ToAsset, fee); err != nil {
		return err
	}
	recipient := w.Address()
	if req.PayToOwner {
		recipient = w.Owner()
	}
	if err := e.pay(req.ToAsset, recipient, net); err != nil {
		return err
	}

	out.Success = true
	out.GrossOutput = gross
	out.Fee = fee
	out.NetDelivered = net
	out.SourceSpent = spent
	out.Recipient = recipient

	return e.chain.Emit(e.addr, EventSwapped, map[string]string{
		"wallet":    w.Address().Hex(),
		"fromAsset": req.FromAsset.Hex(),
		"toAsset":   req.ToAsset.Hex(),
		"spent":     spent.String(),
		"gross":     gross.String(),
		"fee":       fee.String(),
		"net":       net.String(),
		"recipient": recipient.Hex(),
	}, nil)
}

// softFail records a caught failure. By now the pull has been rolled back
// with the rest of the swap.
func (e *Executor) softFail(req *SwapRequest, cause error, out *SwapOutcome) error {
	data := ledger.RevertData(cause)
	reason := decodeReason(data)

	out.Success = false
	out.Reason = reason
	out.ErrorData = data
	out.GrossOutput.SetInt64(0)
	out.Fee.SetInt64(0)
	out.NetDelivered.SetInt64(0)

	return e.chain.Emit(e.addr, EventError, map[string]string{
		"wallet": req.Wallet.Hex(),
		"reason": reason,
	}, data)
}

func (e *Executor) reimburseGas(w *wallet.Wallet, gasBudget uint64, out *SwapOutcome) error {
	amount := e.guard.Cost(e.chain.GasUsed()+GasReimburseOverhead, gasBudget)
	operator := e.chain.Origin()
	if err := w.DemandNative(e.addr, operator, amount); err != nil {
		return fmt.Errorf("gas reimbursement: %w", err)
	}
	out.GasReimbursed = amount
	return e.chain.Emit(e.addr, EventGasReimbursed, map[string]string{
		"wallet":   w.Address().Hex(),
		"operator": operator.Hex(),
		"amount":   amount.String(),
	}, nil)
}

func (e *Executor) approve(token, spender common.Address, amount *big.Int) error {
	payload, err := ledger.PackApprove(spender, amount)
	if err != nil {
		return err
	}
	_, err = e.chain.Call(e.addr, token, nil, payload)
	return err
}

// pay sends amount of asset from the executor.
func (e *Executor) pay(asset, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if ledger.IsNative(asset) {
		_, err := e.chain.Call(e.addr, to, amount, nil)
		return err
	}
	return e.chain.TransferToken(asset, e.addr, to, amount)
}

func decodeReason(data []byte) string {
	if reason, ok := ledger.DecodeRevert(data); ok {
		return reason
	}
	return ReasonUnknownError
}

// Address is the executor's ledger address, the controller every wallet
// must name.
func (e *Executor) Address() common.Address { return e.addr }

// Guard exposes the gas-budget guard.
func (e *Executor) Guard() *Guard { return e.guard }

// Owner returns the executor owner.
func (e *Executor) Owner() common.Address {
	var owner common.Address
	e.chain.View(func() { owner = e.owner })
	return owner
}

// Operator returns the address allowed to submit swaps.
func (e *Executor) Operator() common.Address {
	var op common.Address
	e.chain.View(func() { op = e.operator })
	return op
}

// FeeSink returns the buy-back destination.
func (e *Executor) FeeSink() common.Address {
	var sink common.Address
	e.chain.View(func() { sink = e.feeSink })
	return sink
}

// Fees returns the accrued, uncollected fee for asset.
func (e *Executor) Fees(asset common.Address) *big.Int {
	var v *big.Int
	e.chain.View(func() { v = e.fees.Accrued(asset) })
	return v
}

// Accrued makes the executor a fees.Reader.
func (e *Executor) Accrued(asset common.Address) *big.Int {
	return e.Fees(asset)
}

// FeeAssets lists every asset that has accrued a fee.
func (e *Executor) FeeAssets() []common.Address {
	var assets []common.Address
	e.chain.View(func() { assets = e.fees.Assets() })
	return assets
}

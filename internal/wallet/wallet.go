// Package wallet implements the per-user proxy account and its factory.
package wallet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

var (
	ErrUnauthorized          = errors.New("UW: Unauthorized")
	ErrOnlyOwner             = errors.New("UW: Only owner")
	ErrInsufficientBalance   = errors.New("UW: Not enough balance")
	ErrAlreadyInitialized    = errors.New("UW: Already initialized")
	ErrNotInitialized        = errors.New("UW: Not initialized")
	ErrCannotUpdateReferrer  = errors.New("UW: Cannot update referrer")
	ErrUnknownParam          = errors.New("UW: Unknown param")
	ErrZeroAddress           = errors.New("UW: Zero address")
	ErrTokenTransferFromFail = errors.New("ERC20 transferFrom failed")
)

// Parameter names accepted by ChangeParam.
const (
	ParamOwner      = "owner"
	ParamController = "controller"
	ParamReferrer   = "referrer"
)

// Wallet is a user's proxy account: a passive vault whose funds can only
// be released by its owner or its single controller.
type Wallet struct {
	chain *ledger.Ledger
	addr  common.Address

	owner       common.Address
	controller  common.Address
	referrer    common.Address
	initialized bool
}

// New binds a wallet to addr and registers it on the ledger.
func New(chain *ledger.Ledger, addr common.Address) (*Wallet, error) {
	w := &Wallet{chain: chain, addr: addr}
	if err := chain.Register(addr, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Wallet) Address() common.Address    { return w.addr }
func (w *Wallet) Owner() common.Address      { return w.owner }
func (w *Wallet) Controller() common.Address { return w.controller }
func (w *Wallet) Referrer() common.Address   { return w.referrer }
func (w *Wallet) Initialized() bool          { return w.initialized }

// Balance returns the wallet's holdings of asset.
func (w *Wallet) Balance(asset common.Address) *big.Int {
	return w.chain.BalanceOf(asset, w.addr)
}

// Call makes the wallet a ledger contract. Bare transfers are always
// accepted; nothing else is dispatched through payloads.
func (w *Wallet) Call(_ *ledger.Env, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return nil, ledger.Revert("UW: unsupported call")
}

// Init sets owner, controller and referrer exactly once. value is moved
// from caller as the initial deposit.
func (w *Wallet) Init(caller, controller, owner, referrer common.Address, value *big.Int) error {
	if w.initialized {
		return ErrAlreadyInitialized
	}
	if controller == (common.Address{}) || owner == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := w.chain.Charge(3 * ledger.GasStorageWrite); err != nil {
		return err
	}

	w.setState(func() {
		w.controller = controller
		w.owner = owner
		w.referrer = referrer
		w.initialized = true
	})

	if value != nil && value.Sign() > 0 {
		if err := w.chain.TransferNative(caller, w.addr, value); err != nil {
			return fmt.Errorf("initial deposit: %w", err)
		}
	}
	return w.chain.Emit(w.addr, "Initialized", map[string]string{
		"owner":      owner.Hex(),
		"controller": controller.Hex(),
		"referrer":   referrer.Hex(),
	}, nil)
}

// DemandNative sends amount of native currency to recipient.
func (w *Wallet) DemandNative(caller, recipient common.Address, amount *big.Int) error {
	if err := w.authorize(caller); err != nil {
		return err
	}
	if w.chain.NativeBalance(w.addr).Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, w.chain.NativeBalance(w.addr), amount)
	}
	_, err := w.chain.Call(w.addr, recipient, amount, nil)
	return err
}

// DemandToken sends amount of token to recipient. When the wallet itself
// holds too little, the amount is pulled from the owner through the
// owner's allowance to the wallet.
func (w *Wallet) DemandToken(caller, token, recipient common.Address, amount *big.Int) error {
	if err := w.authorize(caller); err != nil {
		return err
	}

	if w.chain.TokenBalance(token, w.addr).Cmp(amount) >= 0 {
		payload, err := ledger.PackTransfer(recipient, amount)
		if err != nil {
			return err
		}
		_, err = w.chain.Call(w.addr, token, nil, payload)
		return err
	}

	payload, err := ledger.PackTransferFrom(w.owner, recipient, amount)
	if err != nil {
		return err
	}
	ok, _, err := w.chain.TryCall(w.addr, token, nil, payload)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.RevertWith(ErrTokenTransferFromFail, ErrTokenTransferFromFail.Error())
	}
	return nil
}

// DemandArbitraryCall executes payload against target on the wallet's
// behalf. Callee failure is reported through ok and ret, not as an error.
func (w *Wallet) DemandArbitraryCall(caller, target common.Address, value *big.Int, payload []byte) (ok bool, ret []byte, err error) {
	if err := w.authorize(caller); err != nil {
		return false, nil, err
	}
	return w.chain.TryCall(w.addr, target, value, payload)
}

// DemandBatch sweeps the full balance of every listed asset to recipient.
func (w *Wallet) DemandBatch(caller common.Address, assets []common.Address, recipient common.Address) error {
	if err := w.authorize(caller); err != nil {
		return err
	}
	for _, asset := range assets {
		bal := w.chain.BalanceOf(asset, w.addr)
		if bal.Sign() == 0 {
			continue
		}
		var err error
		if ledger.IsNative(asset) {
			_, err = w.chain.Call(w.addr, recipient, bal, nil)
		} else {
			err = w.chain.TransferToken(asset, w.addr, recipient, bal)
		}
		if err != nil {
			return fmt.Errorf("sweep %s: %w", asset.Hex(), err)
		}
	}
	return nil
}

// ChangeOwner hands the wallet to a new owner.
func (w *Wallet) ChangeOwner(caller, newOwner common.Address) error {
	return w.ChangeParam(caller, ParamOwner, newOwner)
}

// ChangeController rotates the delegated executor.
func (w *Wallet) ChangeController(caller, newController common.Address) error {
	return w.ChangeParam(caller, ParamController, newController)
}

// ChangeParam updates a named parameter. The referrer is fixed at init.
func (w *Wallet) ChangeParam(caller common.Address, name string, value common.Address) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	if caller != w.owner {
		return ErrOnlyOwner
	}
	if value == (common.Address{}) {
		return ErrZeroAddress
	}

	var old common.Address
	switch name {
	case ParamOwner:
		old = w.owner
		if err := w.chain.Charge(ledger.GasStorageWrite); err != nil {
			return err
		}
		w.setState(func() { w.owner = value })
	case ParamController:
		old = w.controller
		if err := w.chain.Charge(ledger.GasStorageWrite); err != nil {
			return err
		}
		w.setState(func() { w.controller = value })
	case ParamReferrer:
		return ErrCannotUpdateReferrer
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}

	return w.chain.Emit(w.addr, "ParamUpdated", map[string]string{
		"name": name,
		"old":  old.Hex(),
		"new":  value.Hex(),
	}, nil)
}

func (w *Wallet) authorize(caller common.Address) error {
	if !w.initialized || (caller != w.owner && caller != w.controller) {
		return ErrUnauthorized
	}
	return nil
}

// setState applies mutate and journals the previous parameters.
func (w *Wallet) setState(mutate func()) {
	owner, controller, referrer, initialized := w.owner, w.controller, w.referrer, w.initialized
	w.chain.Record(func() {
		w.owner, w.controller, w.referrer, w.initialized = owner, controller, referrer, initialized
	})
	mutate()
}

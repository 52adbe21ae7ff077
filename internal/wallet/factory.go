package wallet

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

var ErrWalletExists = errors.New("W2W: wallet already deployed for user")

// Factory deploys one wallet per user and keeps the user→wallet registry.
type Factory struct {
	chain *ledger.Ledger
	addr  common.Address
	nonce uint64

	byUser map[common.Address]*Wallet
	byAddr map[common.Address]*Wallet
}

func NewFactory(chain *ledger.Ledger, addr common.Address) *Factory {
	return &Factory{
		chain:  chain,
		addr:   addr,
		byUser: make(map[common.Address]*Wallet),
		byAddr: make(map[common.Address]*Wallet),
	}
}

func (f *Factory) Address() common.Address { return f.addr }

// Deploy creates and initializes user's wallet with controller as its
// executor. value is taken from caller as the first deposit; caller need
// not be the user.
func (f *Factory) Deploy(caller, user, controller, referrer common.Address, value *big.Int) (*Wallet, error) {
	if _, ok := f.byUser[user]; ok {
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, user.Hex())
	}

	addr := crypto.CreateAddress(f.addr, f.nonce)
	w, err := New(f.chain, addr)
	if err != nil {
		return nil, err
	}
	if err := w.Init(caller, controller, user, referrer, value); err != nil {
		return nil, err
	}

	nonce := f.nonce
	f.nonce++
	f.byUser[user] = w
	f.byAddr[addr] = w
	f.chain.Record(func() {
		f.nonce = nonce
		delete(f.byUser, user)
		delete(f.byAddr, addr)
	})

	if err := f.chain.Emit(f.addr, "WalletDeployed", map[string]string{
		"user":   user.Hex(),
		"wallet": addr.Hex(),
	}, nil); err != nil {
		return nil, err
	}
	return w, nil
}

// WalletOf returns the wallet deployed for user.
func (f *Factory) WalletOf(user common.Address) (*Wallet, bool) {
	w, ok := f.byUser[user]
	return w, ok
}

// At returns the wallet deployed at addr.
func (f *Factory) At(addr common.Address) (*Wallet, bool) {
	w, ok := f.byAddr[addr]
	return w, ok
}

// Users lists every user with a wallet, in address order.
func (f *Factory) Users() []common.Address {
	out := make([]common.Address, 0, len(f.byUser))
	for user := range f.byUser {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

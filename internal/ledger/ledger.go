package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the sentinel asset identifier for the native currency.
var NativeAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownToken          = errors.New("unknown token")
	ErrNegativeAmount        = errors.New("negative amount")
	ErrAddressInUse          = errors.New("address already has a contract")
)

// IsNative reports whether asset is the native currency sentinel.
func IsNative(asset common.Address) bool {
	return asset == NativeAsset
}

// Contract is anything that can be addressed by an opaque call payload.
type Contract interface {
	Call(env *Env, payload []byte) ([]byte, error)
}

// Env is the call frame handed to a Contract.
type Env struct {
	Ledger *Ledger
	Caller common.Address
	Self   common.Address
	Value  *big.Int
}

// Receipt summarizes a committed transaction.
type Receipt struct {
	Origin  common.Address
	GasUsed uint64
	Events  []Event
}

// Ledger is a single serialized asset ledger. Only one transaction runs at
// a time; every mutation made inside a transaction is journaled and undone
// if the transaction (or an enclosing Try) fails.
type Ledger struct {
	mu sync.Mutex

	native    map[common.Address]*big.Int
	tokens    map[common.Address]*Token
	contracts map[common.Address]Contract

	inTx    bool
	depth   int
	journal []func()
	events  []Event
	meter   *GasMeter
	origin  common.Address

	clock func() time.Time
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		native:    make(map[common.Address]*big.Int),
		tokens:    make(map[common.Address]*Token),
		contracts: make(map[common.Address]Contract),
		clock:     time.Now,
	}
}

// WithClock overrides the time source used for deadlines.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	if clock != nil {
		l.clock = clock
	}
	return l
}

// Now returns the ledger's notion of the current time.
func (l *Ledger) Now() time.Time {
	return l.clock()
}

// Transact runs fn as one atomic transaction originated by origin. A
// gasLimit of zero disables metering. If fn returns an error, every
// journaled mutation is reverted and no events are kept. A panic in fn
// reverts as well before it is re-raised.
func (l *Ledger) Transact(origin common.Address, gasLimit uint64, fn func() error) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inTx = true
	l.journal = l.journal[:0]
	l.events = nil
	l.meter = NewGasMeter(gasLimit)
	l.origin = origin
	defer func() {
		if r := recover(); r != nil {
			l.RevertToSnapshot(0)
			l.reset()
			panic(r)
		}
		l.reset()
	}()

	err := l.meter.Charge(GasTxBase)
	if err == nil {
		err = fn()
	}
	if err != nil {
		l.RevertToSnapshot(0)
		return nil, err
	}

	return &Receipt{
		Origin:  origin,
		GasUsed: l.meter.Used(),
		Events:  append([]Event(nil), l.events...),
	}, nil
}

// reset clears per-transaction state.
func (l *Ledger) reset() {
	l.inTx = false
	l.depth = 0
	l.journal = l.journal[:0]
	l.events = nil
	l.meter = nil
	l.origin = common.Address{}
}

// View runs fn under the ledger lock without a transaction.
func (l *Ledger) View(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Try runs fn and undoes its effects if it fails. The error is returned
// unchanged; ErrOutOfGas must be propagated by callers so the enclosing
// transaction aborts.
func (l *Ledger) Try(fn func() error) error {
	snap := l.Snapshot()
	l.depth++
	err := fn()
	l.depth--
	if err != nil {
		l.RevertToSnapshot(snap)
	}
	if !l.inTx && l.depth == 0 {
		l.journal = l.journal[:0]
	}
	return err
}

// Snapshot returns a journal position usable with RevertToSnapshot.
func (l *Ledger) Snapshot() int {
	return len(l.journal)
}

// RevertToSnapshot undoes every journaled mutation recorded after snap.
func (l *Ledger) RevertToSnapshot(snap int) {
	for i := len(l.journal) - 1; i >= snap; i-- {
		l.journal[i]()
	}
	if snap < len(l.journal) {
		l.journal = l.journal[:snap]
	}
}

// Record appends an undo step to the journal. Mutations made outside both
// a transaction and a Try are final and nothing is recorded.
func (l *Ledger) Record(undo func()) {
	if !l.inTx && l.depth == 0 {
		return
	}
	l.journal = append(l.journal, undo)
}

// Origin is the account that submitted the running transaction.
func (l *Ledger) Origin() common.Address {
	return l.origin
}

// Charge consumes gas from the running transaction's meter.
func (l *Ledger) Charge(gas uint64) error {
	if l.meter == nil {
		return nil
	}
	return l.meter.Charge(gas)
}

// GasUsed returns the gas consumed so far by the running transaction.
func (l *Ledger) GasUsed() uint64 {
	if l.meter == nil {
		return 0
	}
	return l.meter.Used()
}

// Register binds a contract to an address.
func (l *Ledger) Register(addr common.Address, c Contract) error {
	if _, ok := l.contracts[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAddressInUse, addr.Hex())
	}
	l.contracts[addr] = c
	l.Record(func() { delete(l.contracts, addr) })
	return nil
}

// HasContract reports whether addr has a registered contract.
func (l *Ledger) HasContract(addr common.Address) bool {
	_, ok := l.contracts[addr]
	return ok
}

// NativeBalance returns a copy of addr's native balance.
func (l *Ledger) NativeBalance(addr common.Address) *big.Int {
	if v, ok := l.native[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// BalanceOf returns addr's balance of asset (native or token).
func (l *Ledger) BalanceOf(asset, addr common.Address) *big.Int {
	if IsNative(asset) {
		return l.NativeBalance(addr)
	}
	return l.TokenBalance(asset, addr)
}

// Mint credits amount of asset to addr out of thin air. Used for genesis
// balances, deposits from outside the ledger and tests.
func (l *Ledger) Mint(asset, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if IsNative(asset) {
		l.setNative(to, new(big.Int).Add(l.NativeBalance(to), amount))
		return nil
	}
	t, ok := l.tokens[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, asset.Hex())
	}
	l.setTokenBalance(t, to, new(big.Int).Add(t.balanceOf(to), amount))
	return nil
}

// Transfer moves amount of asset between two accounts.
func (l *Ledger) Transfer(asset, from, to common.Address, amount *big.Int) error {
	if IsNative(asset) {
		return l.TransferNative(from, to, amount)
	}
	return l.TransferToken(asset, from, to, amount)
}

// TransferNative moves native currency. Failures are reverts so that an
// enclosing call reports them as returned data.
func (l *Ledger) TransferNative(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if err := l.Charge(GasNativeTransfer); err != nil {
		return err
	}
	bal := l.NativeBalance(from)
	if bal.Cmp(amount) < 0 {
		return RevertWith(ErrInsufficientBalance, "Address: insufficient balance")
	}
	if from == to || amount.Sign() == 0 {
		return nil
	}
	l.setNative(from, bal.Sub(bal, amount))
	l.setNative(to, new(big.Int).Add(l.NativeBalance(to), amount))
	return nil
}

// Call delivers payload and value from caller to target. A target without
// a contract accepts value with an empty payload and rejects anything else.
// Effects of a failed call are reverted before the error is returned.
func (l *Ledger) Call(caller, target common.Address, value *big.Int, payload []byte) ([]byte, error) {
	if err := l.Charge(GasCall); err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}

	var ret []byte
	err := l.Try(func() error {
		if value.Sign() > 0 {
			if err := l.TransferNative(caller, target, value); err != nil {
				return err
			}
		}
		c, ok := l.contracts[target]
		if !ok {
			if len(payload) == 0 {
				return nil
			}
			return Revert("call to non-contract")
		}
		out, err := c.Call(&Env{Ledger: l, Caller: caller, Self: target, Value: new(big.Int).Set(value)}, payload)
		if err != nil {
			return err
		}
		ret = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// TryCall is Call that reports callee failure as (false, revertData)
// instead of an error. Only ErrOutOfGas is returned as an error.
func (l *Ledger) TryCall(caller, target common.Address, value *big.Int, payload []byte) (bool, []byte, error) {
	ret, err := l.Call(caller, target, value, payload)
	if err == nil {
		return true, ret, nil
	}
	if errors.Is(err, ErrOutOfGas) {
		return false, nil, err
	}
	return false, RevertData(err), nil
}

func (l *Ledger) setNative(addr common.Address, v *big.Int) {
	prev, ok := l.native[addr]
	l.Record(func() {
		if ok {
			l.native[addr] = prev
		} else {
			delete(l.native, addr)
		}
	})
	l.native[addr] = v
}

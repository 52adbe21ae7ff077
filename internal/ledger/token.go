package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ERC20ABI is the token interface every ledger token answers to.
var ERC20ABI = mustParse(erc20JSON)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Token is a fungible asset with balances and allowances.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func (t *Token) balanceOf(addr common.Address) *big.Int {
	if v, ok := t.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *Token) allowance(owner, spender common.Address) *big.Int {
	if v, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// CreateToken registers a new token at addr.
func (l *Ledger) CreateToken(addr common.Address, symbol string, decimals uint8) (*Token, error) {
	t := &Token{
		Address:    addr,
		Symbol:     symbol,
		Decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	if err := l.Register(addr, &tokenContract{token: t}); err != nil {
		return nil, err
	}
	l.tokens[addr] = t
	l.Record(func() { delete(l.tokens, addr) })
	return t, nil
}

// Token looks up a registered token.
func (l *Ledger) Token(addr common.Address) (*Token, bool) {
	t, ok := l.tokens[addr]
	return t, ok
}

// Tokens returns every registered token address.
func (l *Ledger) Tokens() []common.Address {
	out := make([]common.Address, 0, len(l.tokens))
	for addr := range l.tokens {
		out = append(out, addr)
	}
	return out
}

// TokenBalance returns owner's balance of token, zero for unknown tokens.
func (l *Ledger) TokenBalance(token, owner common.Address) *big.Int {
	t, ok := l.tokens[token]
	if !ok {
		return new(big.Int)
	}
	return t.balanceOf(owner)
}

// Allowance returns what spender may pull from owner.
func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	t, ok := l.tokens[token]
	if !ok {
		return new(big.Int)
	}
	return t.allowance(owner, spender)
}

// TransferToken moves amount of token from one holder to another.
func (l *Ledger) TransferToken(token, from, to common.Address, amount *big.Int) error {
	t, err := l.token(token)
	if err != nil {
		return err
	}
	return l.moveToken(t, from, to, amount)
}

// Approve sets spender's allowance over owner's tokens.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	t, err := l.token(token)
	if err != nil {
		return err
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if err := l.Charge(GasApprove); err != nil {
		return err
	}
	l.setAllowance(t, owner, spender, new(big.Int).Set(amount))
	return nil
}

// TransferTokenFrom moves tokens on behalf of from using spender's allowance.
func (l *Ledger) TransferTokenFrom(token, spender, from, to common.Address, amount *big.Int) error {
	t, err := l.token(token)
	if err != nil {
		return err
	}
	allowed := t.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return RevertWith(ErrInsufficientAllowance, "ERC20: transfer amount exceeds allowance")
	}
	if err := l.moveToken(t, from, to, amount); err != nil {
		return err
	}
	l.setAllowance(t, from, spender, allowed.Sub(allowed, amount))
	return nil
}

func (l *Ledger) token(addr common.Address) (*Token, error) {
	t, ok := l.tokens[addr]
	if !ok {
		return nil, RevertWith(ErrUnknownToken, fmt.Sprintf("unknown token %s", addr.Hex()))
	}
	return t, nil
}

func (l *Ledger) moveToken(t *Token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if err := l.Charge(GasTokenTransfer); err != nil {
		return err
	}
	bal := t.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return RevertWith(ErrInsufficientBalance, "ERC20: transfer amount exceeds balance")
	}
	if from == to || amount.Sign() == 0 {
		return nil
	}
	l.setTokenBalance(t, from, bal.Sub(bal, amount))
	l.setTokenBalance(t, to, new(big.Int).Add(t.balanceOf(to), amount))
	return nil
}

func (l *Ledger) setTokenBalance(t *Token, addr common.Address, v *big.Int) {
	prev, ok := t.balances[addr]
	l.Record(func() {
		if ok {
			t.balances[addr] = prev
		} else {
			delete(t.balances, addr)
		}
	})
	t.balances[addr] = v
}

func (l *Ledger) setAllowance(t *Token, owner, spender common.Address, v *big.Int) {
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		t.allowances[owner] = byOwner
	}
	prev, had := byOwner[spender]
	l.Record(func() {
		if had {
			byOwner[spender] = prev
		} else {
			delete(byOwner, spender)
		}
	})
	byOwner[spender] = v
}

// tokenContract exposes a Token through ERC-20 call payloads.
type tokenContract struct {
	token *Token
}

func (c *tokenContract) Call(env *Env, payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, Revert("ERC20: missing selector")
	}
	method, err := ERC20ABI.MethodById(payload[:4])
	if err != nil {
		return nil, Revert("ERC20: unknown selector")
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, Revertf("ERC20: bad arguments for %s", method.Name)
	}

	l := env.Ledger
	addr := c.token.Address
	switch method.Name {
	case "balanceOf":
		if err := l.Charge(GasBalanceRead); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(l.TokenBalance(addr, args[0].(common.Address)))
	case "allowance":
		if err := l.Charge(GasBalanceRead); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(l.Allowance(addr, args[0].(common.Address), args[1].(common.Address)))
	case "transfer":
		if err := l.TransferToken(addr, env.Caller, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "approve":
		if err := l.Approve(addr, env.Caller, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "transferFrom":
		if err := l.TransferTokenFrom(addr, env.Caller, args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	}
	return nil, Revertf("ERC20: unsupported method %s", method.Name)
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("transfer", to, amount)
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

// PackTransferFrom encodes transferFrom(from, to, amount).
func PackTransferFrom(from, to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("transferFrom", from, to, amount)
}

// PackBalanceOf encodes balanceOf(owner).
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return ERC20ABI.Pack("balanceOf", owner)
}

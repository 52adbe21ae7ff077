package amm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

// NativeSymbol names the native currency in registry files.
const NativeSymbol = "ETH"

// DefaultFeeBps is the Uniswap V2 pool fee.
const DefaultFeeBps = 30

// TokenConfig is a token entry in the JSON registry.
type TokenConfig struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

// PoolConfig is a pool entry in the JSON registry.
type PoolConfig struct {
	Name     string `json:"name"`
	Pair     string `json:"pair"`
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
	FeeBps   uint16 `json:"fee_bps,omitempty"`
}

type registryFile struct {
	Router string        `json:"router"`
	Tokens []TokenConfig `json:"tokens"`
	Pools  []PoolConfig  `json:"pools"`
}

// Token is a parsed token entry.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Pool is a parsed, ready-to-use pool. Reserves are the genesis liquidity;
// live reserves are the pair's ledger balances.
type Pool struct {
	Name     string
	Pair     common.Address
	TokenA   common.Address
	TokenB   common.Address
	ReserveA *big.Int
	ReserveB *big.Int
	FeeBps   uint16
}

// Registry holds the configured router, tokens and pools.
type Registry struct {
	Router common.Address
	tokens []Token
	pools  []Pool
}

// LoadRegistry reads and parses a registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses registry JSON.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if !common.IsHexAddress(file.Router) {
		return nil, fmt.Errorf("invalid router address %q", file.Router)
	}

	reg := &Registry{Router: common.HexToAddress(file.Router)}
	for i, cfg := range file.Tokens {
		if !common.IsHexAddress(cfg.Address) {
			return nil, fmt.Errorf("token %d (%s): invalid address %q", i, cfg.Symbol, cfg.Address)
		}
		reg.tokens = append(reg.tokens, Token{
			Symbol:   strings.ToUpper(cfg.Symbol),
			Address:  common.HexToAddress(cfg.Address),
			Decimals: cfg.Decimals,
		})
	}
	for i, cfg := range file.Pools {
		pool, err := reg.parsePool(cfg)
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}
		reg.pools = append(reg.pools, pool)
	}
	return reg, nil
}

func (r *Registry) parsePool(cfg PoolConfig) (Pool, error) {
	if !common.IsHexAddress(cfg.Pair) {
		return Pool{}, fmt.Errorf("invalid pair address %q", cfg.Pair)
	}
	a, err := r.ResolveAsset(cfg.TokenA)
	if err != nil {
		return Pool{}, err
	}
	b, err := r.ResolveAsset(cfg.TokenB)
	if err != nil {
		return Pool{}, err
	}
	if a == b {
		return Pool{}, fmt.Errorf("identical tokens %s", cfg.TokenA)
	}
	resA, ok := new(big.Int).SetString(cfg.ReserveA, 10)
	if !ok || resA.Sign() < 0 {
		return Pool{}, fmt.Errorf("invalid reserve_a %q", cfg.ReserveA)
	}
	resB, ok := new(big.Int).SetString(cfg.ReserveB, 10)
	if !ok || resB.Sign() < 0 {
		return Pool{}, fmt.Errorf("invalid reserve_b %q", cfg.ReserveB)
	}
	fee := cfg.FeeBps
	if fee == 0 {
		fee = DefaultFeeBps
	}
	if fee >= bpsDenominator {
		return Pool{}, fmt.Errorf("fee_bps must be < %d", bpsDenominator)
	}

	return Pool{
		Name:     cfg.Name,
		Pair:     common.HexToAddress(cfg.Pair),
		TokenA:   a,
		TokenB:   b,
		ReserveA: resA,
		ReserveB: resB,
		FeeBps:   fee,
	}, nil
}

// ResolveAsset maps a symbol or hex address to an asset address. The
// native symbol resolves to the ledger's native sentinel.
func (r *Registry) ResolveAsset(symbolOrAddress string) (common.Address, error) {
	if strings.EqualFold(symbolOrAddress, NativeSymbol) {
		return ledger.NativeAsset, nil
	}
	if common.IsHexAddress(symbolOrAddress) {
		return common.HexToAddress(symbolOrAddress), nil
	}
	if t, ok := r.TokenBySymbol(symbolOrAddress); ok {
		return t.Address, nil
	}
	return common.Address{}, fmt.Errorf("unknown asset %q", symbolOrAddress)
}

// TokenBySymbol looks a token up by symbol, case-insensitively.
func (r *Registry) TokenBySymbol(symbol string) (Token, bool) {
	for _, t := range r.tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return Token{}, false
}

// FindPoolByTokens searches for a pool matching the pair in either order.
func (r *Registry) FindPoolByTokens(a, b common.Address) (*Pool, error) {
	for i := range r.pools {
		pool := &r.pools[i]
		if (pool.TokenA == a && pool.TokenB == b) || (pool.TokenA == b && pool.TokenB == a) {
			return pool, nil
		}
	}
	return nil, fmt.Errorf("no pool found for %s / %s", a.Hex(), b.Hex())
}

// FindPoolByName searches for a pool by its name.
func (r *Registry) FindPoolByName(name string) (*Pool, error) {
	for i := range r.pools {
		if r.pools[i].Name == name {
			return &r.pools[i], nil
		}
	}
	return nil, fmt.Errorf("pool not found: %s", name)
}

func (r *Registry) Tokens() []Token { return r.tokens }
func (r *Registry) Pools() []Pool   { return r.pools }
func (r *Registry) PoolCount() int  { return len(r.pools) }

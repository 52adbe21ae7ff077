// Package buyback is the receiving end of swept protocol fees. Conversion
// of the received balances happens outside this module.
package buyback

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/fees"
	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

// Sink is a passive ledger account that accepts native and token
// transfers.
type Sink struct {
	chain *ledger.Ledger
	addr  common.Address
}

// New registers a sink at addr.
func New(chain *ledger.Ledger, addr common.Address) (*Sink, error) {
	s := &Sink{chain: chain, addr: addr}
	if err := chain.Register(addr, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) Address() common.Address { return s.addr }

// Call accepts bare transfers only.
func (s *Sink) Call(_ *ledger.Env, payload []byte) ([]byte, error) {
	if len(payload) > 0 {
		return nil, ledger.Revert("BuyBacker: unsupported call")
	}
	return nil, nil
}

// Received returns what the sink currently holds of asset.
func (s *Sink) Received(asset common.Address) *big.Int {
	return s.chain.BalanceOf(asset, s.addr)
}

// Pending reports, per asset, the fees still accrued on the executor and
// not yet swept. Zero entries are omitted.
func (s *Sink) Pending(reader fees.Reader, assets []common.Address) map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(assets))
	for _, asset := range assets {
		if v := reader.Accrued(asset); v.Sign() > 0 {
			out[asset] = v
		}
	}
	return out
}

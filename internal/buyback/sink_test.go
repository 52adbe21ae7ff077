package buyback

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/fees"
	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
)

func TestSink(t *testing.T) {
	chain := ledger.New()
	payer := common.HexToAddress("0x0000000000000000000000000000000000000009")
	tok := common.HexToAddress("0x00000000000000000000000000000000000000ab")
	_, err := chain.CreateToken(tok, "TOK", 18)
	require.NoError(t, err)
	require.NoError(t, chain.Mint(ledger.NativeAsset, payer, big.NewInt(10)))

	sink, err := New(chain, common.HexToAddress("0x00000000000000000000000000000000000000bb"))
	require.NoError(t, err)

	_, err = chain.Call(payer, sink.Address(), big.NewInt(4), nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4), sink.Received(ledger.NativeAsset))

	_, err = chain.Call(payer, sink.Address(), nil, []byte{0xaa, 0xbb, 0xcc, 0xdd})
	assert.Error(t, err)

	ledgerFees := fees.NewLedger(chain)
	require.NoError(t, ledgerFees.Credit(tok, big.NewInt(7)))

	pending := sink.Pending(ledgerFees, []common.Address{tok, ledger.NativeAsset})
	assert.Len(t, pending, 1)
	assert.Equal(t, big.NewInt(7), pending[tok])
}

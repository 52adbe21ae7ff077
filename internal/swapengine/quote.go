package swapengine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/amm"
	"github.com/aman-zulfiqar/w2w-relay/internal/fees"
	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
	"github.com/aman-zulfiqar/w2w-relay/internal/wallet"
)

// SwapIntent is the operator-friendly form of a swap: assets by symbol,
// payload built from the bundled router.
type SwapIntent struct {
	User        common.Address
	FromAsset   string
	ToAsset     string
	Amount      *big.Int
	SlippageBps *uint16
	Fee         fees.Rate
	PayToOwner  bool
	GasBudget   uint64
}

// QuoteResult describes the router's expected output for an intent.
type QuoteResult struct {
	Shape        Shape          `json:"shape"`
	FromAsset    common.Address `json:"from_asset"`
	ToAsset      common.Address `json:"to_asset"`
	AmountIn     *big.Int       `json:"amount_in"`
	AmountOut    *big.Int       `json:"amount_out"`
	MinAmountOut *big.Int       `json:"min_amount_out"`
	SlippageBps  uint16         `json:"slippage_bps"`
	ExpectedFee  *big.Int       `json:"expected_fee"`
	Path         []string       `json:"path"`
	QuotedAt     time.Time      `json:"quoted_at"`
}

// ShapeFor derives the swap shape from its assets.
func ShapeFor(from, to common.Address) (Shape, error) {
	switch {
	case ledger.IsNative(from) && ledger.IsNative(to):
		return "", fmt.Errorf("%w: native to native", ErrInvalidRequest)
	case ledger.IsNative(from):
		return ShapeETHForTokens, nil
	case ledger.IsNative(to):
		return ShapeTokensForETH, nil
	}
	return ShapeTokens, nil
}

// Quote prices an intent against the router without executing it.
func (e *Engine) Quote(ctx context.Context, intent *SwapIntent) (*QuoteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if intent == nil || intent.Amount == nil || intent.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	}

	from, err := e.registry.ResolveAsset(intent.FromAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	to, err := e.registry.ResolveAsset(intent.ToAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	shape, err := ShapeFor(from, to)
	if err != nil {
		return nil, err
	}

	path, err := e.route(from, to)
	if err != nil {
		return nil, err
	}

	var amounts []*big.Int
	e.chain.View(func() {
		amounts, err = e.router.GetAmountsOut(intent.Amount, path)
	})
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	slippage := e.cfg.DefaultSlippageBps
	if intent.SlippageBps != nil {
		slippage = *intent.SlippageBps
	}
	out := amounts[len(amounts)-1]
	fee, _ := fees.Compute(out, intent.Fee)

	hops := make([]string, len(path))
	for i, p := range path {
		hops[i] = p.Hex()
	}

	return &QuoteResult{
		Shape:        shape,
		FromAsset:    from,
		ToAsset:      to,
		AmountIn:     new(big.Int).Set(intent.Amount),
		AmountOut:    out,
		MinAmountOut: amm.ApplySlippage(out, slippage),
		SlippageBps:  slippage,
		ExpectedFee:  fee,
		Path:         hops,
		QuotedAt:     time.Now(),
	}, nil
}

// BuildRequest turns an intent into an executable request whose payload
// targets the bundled router and pays the executor.
func (e *Engine) BuildRequest(ctx context.Context, intent *SwapIntent) (Shape, *SwapRequest, *QuoteResult, error) {
	quote, err := e.Quote(ctx, intent)
	if err != nil {
		return "", nil, nil, err
	}
	var (
		w  *wallet.Wallet
		ok bool
	)
	e.chain.View(func() { w, ok = e.factory.WalletOf(intent.User) })
	if !ok {
		return "", nil, nil, fmt.Errorf("%w: no wallet for user %s", ErrUnknownWallet, intent.User.Hex())
	}

	path, err := e.route(quote.FromAsset, quote.ToAsset)
	if err != nil {
		return "", nil, nil, err
	}
	deadline := big.NewInt(time.Now().Add(e.cfg.PayloadDeadline).Unix())
	recipient := e.executor.Address()

	var payload []byte
	switch quote.Shape {
	case ShapeETHForTokens:
		payload, err = amm.PackSwapExactETHForTokens(quote.MinAmountOut, path, recipient, deadline)
	case ShapeTokens:
		payload, err = amm.PackSwapExactTokensForTokens(quote.AmountIn, quote.MinAmountOut, path, recipient, deadline)
	case ShapeTokensForETH:
		payload, err = amm.PackSwapExactTokensForETH(quote.AmountIn, quote.MinAmountOut, path, recipient, deadline)
	}
	if err != nil {
		return "", nil, nil, fmt.Errorf("build payload: %w", err)
	}

	req := &SwapRequest{
		Wallet:     w.Address(),
		FromAsset:  quote.FromAsset,
		Amount:     quote.AmountIn,
		ToAsset:    quote.ToAsset,
		MinReturn:  quote.MinAmountOut,
		Fee:        intent.Fee,
		PayToOwner: intent.PayToOwner,
		GasBudget:  intent.GasBudget,
		Spender:    e.router.Address(),
		Target:     e.router.Address(),
		Payload:    payload,
	}
	return quote.Shape, req, quote, nil
}

// route finds a direct pool, or a two-hop route through the native asset.
func (e *Engine) route(from, to common.Address) ([]common.Address, error) {
	if _, err := e.registry.FindPoolByTokens(from, to); err == nil {
		return []common.Address{from, to}, nil
	}
	if !ledger.IsNative(from) && !ledger.IsNative(to) {
		_, errA := e.registry.FindPoolByTokens(from, ledger.NativeAsset)
		_, errB := e.registry.FindPoolByTokens(ledger.NativeAsset, to)
		if errA == nil && errB == nil {
			return []common.Address{from, ledger.NativeAsset, to}, nil
		}
	}
	return nil, fmt.Errorf("%w: no route from %s to %s", ErrInvalidRequest, from.Hex(), to.Hex())
}

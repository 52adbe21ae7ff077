package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aman-zulfiqar/w2w-relay/internal/flags"
	"github.com/aman-zulfiqar/w2w-relay/internal/models"
	"github.com/aman-zulfiqar/w2w-relay/internal/server"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

// Health fetches relay identities
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var out server.HealthResponse
	if err := c.Do(ctx, http.MethodGet, "/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quote prices a swap without executing it
func (c *Client) Quote(ctx context.Context, from, to, amount string, slippageBps *uint16) (*swapengine.QuoteResult, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("amount", amount)
	if slippageBps != nil {
		q.Set("slippageBps", strconv.FormatUint(uint64(*slippageBps), 10))
	}

	var out swapengine.QuoteResult
	if err := c.Do(ctx, http.MethodGet, "/v1/quote?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeployWallet creates a proxy account for user
func (c *Client) DeployWallet(ctx context.Context, req server.DeployWalletRequest) (*swapengine.WalletInfo, error) {
	var out swapengine.WalletInfo
	if err := c.Do(ctx, http.MethodPost, "/v1/wallets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WalletInfo reads a user's proxy account
func (c *Client) WalletInfo(ctx context.Context, user string) (*swapengine.WalletInfo, error) {
	var out swapengine.WalletInfo
	if err := c.Do(ctx, http.MethodGet, "/v1/wallets/"+escape(user), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deposit credits a wallet through the development faucet
func (c *Client) Deposit(ctx context.Context, user string, req server.DepositRequest) (*swapengine.WalletInfo, error) {
	var out swapengine.WalletInfo
	if err := c.Do(ctx, http.MethodPost, "/v1/wallets/"+escape(user)+"/deposit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Swap submits a raw swap of the given shape
func (c *Client) Swap(ctx context.Context, shape swapengine.Shape, req server.SwapRequestBody) (*server.SwapResponse, error) {
	path := map[swapengine.Shape]string{
		swapengine.ShapeETHForTokens: "/v1/swaps/eth-for-tokens",
		swapengine.ShapeTokens:       "/v1/swaps/tokens",
		swapengine.ShapeTokensForETH: "/v1/swaps/tokens-for-eth",
	}[shape]
	if path == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Message: "unknown shape " + string(shape)}
	}

	var out server.SwapResponse
	if err := c.Do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SwapIntent submits a swap routed through the bundled router
func (c *Client) SwapIntent(ctx context.Context, req server.SwapIntentBody) (*server.SwapResponse, error) {
	var out server.SwapResponse
	if err := c.Do(ctx, http.MethodPost, "/v1/swaps/intent", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentOutcomes lists the newest swap outcomes
func (c *Client) RecentOutcomes(ctx context.Context, limit int) ([]*models.OutcomeRecord, error) {
	var out struct {
		Items []*models.OutcomeRecord `json:"items"`
	}
	path := "/v1/swaps/recent?limit=" + strconv.Itoa(limit)
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Fees reads the fee position of asset
func (c *Client) Fees(ctx context.Context, asset string) (*swapengine.FeeBalance, error) {
	var out swapengine.FeeBalance
	if err := c.Do(ctx, http.MethodGet, "/v1/fees/"+escape(asset), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PendingFees lists assets with accrued fees
func (c *Client) PendingFees(ctx context.Context) ([]server.PendingFee, error) {
	var out struct {
		Items []server.PendingFee `json:"items"`
	}
	if err := c.Do(ctx, http.MethodGet, "/v1/fees", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// SweepFees sends accrued fees to the fee sink
func (c *Client) SweepFees(ctx context.Context, assets []string) (*swapengine.CollectResult, error) {
	var out swapengine.CollectResult
	if err := c.Do(ctx, http.MethodPost, "/v1/fees/sweep", server.SweepRequest{Assets: assets}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CollectTokens withdraws extra token balance from the executor
func (c *Client) CollectTokens(ctx context.Context, req server.CollectRequest) (*swapengine.CollectResult, error) {
	var out swapengine.CollectResult
	if err := c.Do(ctx, http.MethodPost, "/v1/collect/tokens", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CollectETH withdraws extra native balance from the executor
func (c *Client) CollectETH(ctx context.Context, req server.CollectRequest) (*swapengine.CollectResult, error) {
	var out swapengine.CollectResult
	if err := c.Do(ctx, http.MethodPost, "/v1/collect/eth", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetOperator rotates the swap operator
func (c *Client) SetOperator(ctx context.Context, operator string) error {
	return c.Do(ctx, http.MethodPost, "/v1/operator", server.SetOperatorRequest{Operator: operator}, nil)
}

// Flags lists relay switches
func (c *Client) Flags(ctx context.Context) ([]*flags.Flag, error) {
	var out struct {
		Items []*flags.Flag `json:"items"`
	}
	if err := c.Do(ctx, http.MethodGet, "/v1/flags", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// SetFlag creates or updates a relay switch
func (c *Client) SetFlag(ctx context.Context, key string, value bool) (*flags.Flag, error) {
	var out flags.Flag
	if err := c.Do(ctx, http.MethodPost, "/v1/flags", server.FlagUpsertRequest{Key: key, Value: value}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteFlag removes a relay switch
func (c *Client) DeleteFlag(ctx context.Context, key string) error {
	return c.Do(ctx, http.MethodDelete, "/v1/flags/"+escape(key), nil, nil)
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/constants"
	"github.com/aman-zulfiqar/w2w-relay/internal/server"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

func newTestClient(url, key string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(ClientConfig{
		BaseURL:      url,
		APIKey:       key,
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		Logger:       logger,
	})
}

func TestDo_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get(constants.APIKeyHeader))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer ts.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := newTestClient(ts.URL, "k").Do(context.Background(), http.MethodPost, "/x", map[string]int{"a": 1}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_PostNotRetriedOnServerError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "upstream", "code": 502})
	}))
	defer ts.Close()

	err := newTestClient(ts.URL, "").Do(context.Background(), http.MethodPost, "/x", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_GetRetriedUntilExhausted(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	err := newTestClient(ts.URL, "").Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(4), calls.Load())
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"W2W:Only owner","code":403}`))
	}))
	defer ts.Close()

	err := newTestClient(ts.URL, "").Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "W2W:Only owner", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AgainstRelay(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := swapengine.DefaultEngineConfig()
	cfg.RegistryPath = "../config/pools.json"
	engine, err := swapengine.NewEngine(context.Background(), cfg, logger)
	require.NoError(t, err)

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: &server.Handlers{Engine: engine, Logger: logger},
		Config:   server.ServerConfig{APIKey: "op", AdminAPIKey: "admin"},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	op := newTestClient(ts.URL, "op")
	admin := newTestClient(ts.URL, "admin")
	user := "0x000000000000000000000000000000000000a11c"

	health, err := op.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.OK)

	_, err = op.DeployWallet(ctx, server.DeployWalletRequest{User: user})
	require.NoError(t, err)
	_, err = op.Deposit(ctx, user, server.DepositRequest{Asset: "ETH", Amount: "5000000000000000000"})
	require.NoError(t, err)

	resp, err := op.SwapIntent(ctx, server.SwapIntentBody{
		User: user, FromAsset: "ETH", ToAsset: "USDC", Amount: "1000000000000000000", FeeBps: 30,
	})
	require.NoError(t, err)
	require.True(t, resp.Outcome.Success, resp.Outcome.Reason)

	info, err := op.WalletInfo(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, resp.Outcome.NetDelivered.String(), info.Balances["USDC"])

	recent, err := op.RecentOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	pending, err := op.PendingFees(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = op.SweepFees(ctx, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	res, err := admin.SweepFees(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, res.Swept, 1)

	fb, err := op.Fees(ctx, "USDC")
	require.NoError(t, err)
	assert.Equal(t, "0", fb.Accrued)
}

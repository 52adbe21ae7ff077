package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/cache"
	"github.com/aman-zulfiqar/w2w-relay/internal/flags"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

// setupRedisServer wires the engine and flag CRUD to a real Redis.
func setupRedisServer(t *testing.T) (*echo.Echo, *redis.Client) {
	t.Helper()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   2, // Use different DB for integration tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		t.Skipf("Redis not available for integration tests: %v", err)
	}
	require.NoError(t, rc.FlushDB(ctx).Err())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rc.FlushDB(ctx).Err()
		_ = rc.Close()
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	flagStore, err := flags.NewStore(rc)
	require.NoError(t, err)

	engineCfg := swapengine.DefaultEngineConfig()
	engineCfg.RegistryPath = "../config/pools.json"
	engine, err := swapengine.NewEngine(context.Background(), engineCfg, logger,
		swapengine.WithCache(cache.NewRedisCacheFromClient(rc, 50)),
		swapengine.WithFlags(flagStore),
	)
	require.NoError(t, err)

	srv, err := NewServer(ServerDeps{
		Handlers: &Handlers{Engine: engine, Flags: flagStore, Logger: logger, DevMode: true},
		Config:   authConfig(),
	})
	require.NoError(t, err)
	return srv.Handler(), rc
}

func TestIntegration_FlagsCRUD(t *testing.T) {
	e, _ := setupRedisServer(t)

	// Switches are an owner concern.
	rec := do(t, e, http.MethodGet, "/v1/flags", testAPIKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodPost, "/v1/flags", testAdminKey, FlagUpsertRequest{Key: "test.flag", Value: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var f flags.Flag
	decode(t, rec, &f)
	assert.Equal(t, "test.flag", f.Key)
	assert.True(t, f.Value)
	assert.NotZero(t, f.UpdatedAt)

	rec = do(t, e, http.MethodPut, "/v1/flags/test.flag", testAdminKey, FlagUpdateRequest{Value: false})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &f)
	assert.False(t, f.Value)

	rec = do(t, e, http.MethodGet, "/v1/flags/test.flag", testAdminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodDelete, "/v1/flags/test.flag", testAdminKey, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, e, http.MethodGet, "/v1/flags/test.flag", testAdminKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntegration_PauseAndFaucet(t *testing.T) {
	e, _ := setupRedisServer(t)

	rec := do(t, e, http.MethodPost, "/v1/wallets", testAPIKey, DeployWalletRequest{User: testUser.Hex()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The faucet is off until the owner enables it.
	deposit := DepositRequest{Asset: "ETH", Amount: "5000000000000000000"}
	rec = do(t, e, http.MethodPost, "/v1/wallets/"+testUser.Hex()+"/deposit", testAPIKey, deposit)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodPost, "/v1/flags", testAdminKey, FlagUpsertRequest{Key: flags.DepositFaucetEnabled, Value: true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, e, http.MethodPost, "/v1/wallets/"+testUser.Hex()+"/deposit", testAPIKey, deposit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	intent := SwapIntentBody{User: testUser.Hex(), FromAsset: "ETH", ToAsset: "DAI", Amount: "1000000000000000000", FeeBps: 10}

	rec = do(t, e, http.MethodPost, "/v1/flags", testAdminKey, FlagUpsertRequest{Key: flags.RelayPaused, Value: true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, e, http.MethodPost, "/v1/swaps/intent", testAPIKey, intent)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, e, http.MethodPut, "/v1/flags/"+flags.RelayPaused, testAdminKey, FlagUpdateRequest{Value: false})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, e, http.MethodPost, "/v1/swaps/intent", testAPIKey, intent)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Outcomes are served from Redis.
	rec = do(t, e, http.MethodGet, "/v1/swaps/recent", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recent struct {
		Items []struct {
			Success bool `json:"success"`
		} `json:"items"`
	}
	decode(t, rec, &recent)
	require.Len(t, recent.Items, 1)
	assert.True(t, recent.Items[0].Success)
}

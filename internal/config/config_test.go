package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "op")
	t.Setenv("ADMIN_API_KEY", "admin")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, big.NewInt(20_000_000_000), cfg.GasPrice())
	assert.Equal(t, uint64(3_000_000), cfg.DefaultGasBudget)
	assert.Equal(t, 2*time.Minute, cfg.PayloadDeadline)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RELAY_GAS_PRICE_WEI", "1000")
	t.Setenv("RELAY_DEFAULT_GAS_BUDGET", "500000")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, big.NewInt(1000), cfg.GasPrice())
	assert.Equal(t, uint64(500000), cfg.DefaultGasBudget)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestValidate(t *testing.T) {
	t.Setenv("API_KEY", "op")
	t.Setenv("ADMIN_API_KEY", "op")
	t.Setenv("RELAY_OWNER_ADDRESS", "not-an-address")
	t.Setenv("RELAY_GAS_PRICE_WEI", "-1")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_OWNER_ADDRESS")
	assert.Contains(t, err.Error(), "RELAY_GAS_PRICE_WEI")
	assert.Contains(t, err.Error(), "ADMIN_API_KEY")
}

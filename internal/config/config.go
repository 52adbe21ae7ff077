package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/w2w-relay/internal/constants"
)

type Config struct {
	// HTTP server
	HTTPAddr       string
	APIKey         string
	AdminAPIKey    string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	DevMode        bool

	// Relay identities
	ExecutorAddress string
	OwnerAddress    string
	OperatorAddress string
	FactoryAddress  string
	FeeSinkAddress  string

	// Gas and swap defaults
	GasPriceWei        string
	DefaultGasBudget   uint64
	MaxGasBudget       uint64
	AdminGasLimit      uint64
	DefaultSlippageBps int
	PayloadDeadline    time.Duration

	// Router registry
	RegistryPath string

	// Redis settings
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RecentOutcomes int

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	RelayURL     string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		// Server
		HTTPAddr:       getEnv("HTTP_ADDR", constants.DefaultHTTPAddr),
		APIKey:         getEnv("API_KEY", ""),
		AdminAPIKey:    getEnv("ADMIN_API_KEY", ""),
		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 10),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", constants.RequestTimeout),
		DevMode:        getEnv("DEV_MODE", "false") == "true",

		// Relay
		ExecutorAddress: getEnv("RELAY_EXECUTOR_ADDRESS", "0x0000000000000000000000000000000000e4ec01"),
		OwnerAddress:    getEnv("RELAY_OWNER_ADDRESS", "0x00000000000000000000000000000000000a0001"),
		OperatorAddress: getEnv("RELAY_OPERATOR_ADDRESS", "0x00000000000000000000000000000000000a0002"),
		FactoryAddress:  getEnv("RELAY_FACTORY_ADDRESS", "0x0000000000000000000000000000000000fac701"),
		FeeSinkAddress:  getEnv("RELAY_FEE_SINK_ADDRESS", "0x0000000000000000000000000000000000b0bac4"),

		GasPriceWei:        getEnv("RELAY_GAS_PRICE_WEI", "20000000000"),
		DefaultGasBudget:   uint64(getIntEnv("RELAY_DEFAULT_GAS_BUDGET", 3_000_000)),
		MaxGasBudget:       uint64(getIntEnv("RELAY_MAX_GAS_BUDGET", 10_000_000)),
		AdminGasLimit:      uint64(getIntEnv("RELAY_ADMIN_GAS_LIMIT", 1_000_000)),
		DefaultSlippageBps: getIntEnv("RELAY_DEFAULT_SLIPPAGE_BPS", 100),
		PayloadDeadline:    getDurationEnv("RELAY_PAYLOAD_DEADLINE", constants.PayloadDeadline),

		RegistryPath: getEnv("RELAY_REGISTRY_PATH", "internal/config/pools.json"),

		// Redis
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		RecentOutcomes: getIntEnv("RECENT_OUTCOMES", constants.MaxRecentOutcomes),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "relay"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP client
		RelayURL:     getEnv("RELAY_URL", "http://localhost:8090"),
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the settings the relay daemon cannot run without.
func (c *Config) Validate() error {
	var errs []error

	addrs := map[string]string{
		"RELAY_EXECUTOR_ADDRESS": c.ExecutorAddress,
		"RELAY_OWNER_ADDRESS":    c.OwnerAddress,
		"RELAY_OPERATOR_ADDRESS": c.OperatorAddress,
		"RELAY_FACTORY_ADDRESS":  c.FactoryAddress,
		"RELAY_FEE_SINK_ADDRESS": c.FeeSinkAddress,
	}
	for name, v := range addrs {
		if !common.IsHexAddress(v) {
			errs = append(errs, fmt.Errorf("%s: invalid address %q", name, v))
		}
	}
	if c.ExecutorAddress == c.OperatorAddress {
		errs = append(errs, errors.New("RELAY_OPERATOR_ADDRESS must differ from RELAY_EXECUTOR_ADDRESS"))
	}
	if p, ok := new(big.Int).SetString(c.GasPriceWei, 10); !ok || p.Sign() <= 0 {
		errs = append(errs, fmt.Errorf("RELAY_GAS_PRICE_WEI: invalid value %q", c.GasPriceWei))
	}
	if c.DefaultGasBudget == 0 {
		errs = append(errs, errors.New("RELAY_DEFAULT_GAS_BUDGET must be > 0"))
	}
	if c.MaxGasBudget > 0 && c.DefaultGasBudget > c.MaxGasBudget {
		errs = append(errs, errors.New("RELAY_DEFAULT_GAS_BUDGET exceeds RELAY_MAX_GAS_BUDGET"))
	}
	if c.DefaultSlippageBps < 0 || c.DefaultSlippageBps >= 10000 {
		errs = append(errs, fmt.Errorf("RELAY_DEFAULT_SLIPPAGE_BPS out of range: %d", c.DefaultSlippageBps))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	if c.AdminAPIKey == "" || c.AdminAPIKey == c.APIKey {
		errs = append(errs, errors.New("ADMIN_API_KEY is required and must differ from API_KEY"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0"))
	}

	return errors.Join(errs...)
}

// GasPrice returns the assumed relay gas price in wei.
func (c *Config) GasPrice() *big.Int {
	p, ok := new(big.Int).SetString(c.GasPriceWei, 10)
	if !ok {
		return nil
	}
	return p
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

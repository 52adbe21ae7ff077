package swapengine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/w2w-relay/internal/amm"
	"github.com/aman-zulfiqar/w2w-relay/internal/buyback"
	"github.com/aman-zulfiqar/w2w-relay/internal/cache"
	"github.com/aman-zulfiqar/w2w-relay/internal/config"
	"github.com/aman-zulfiqar/w2w-relay/internal/constants"
	"github.com/aman-zulfiqar/w2w-relay/internal/flags"
	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
	"github.com/aman-zulfiqar/w2w-relay/internal/models"
	"github.com/aman-zulfiqar/w2w-relay/internal/storage"
	"github.com/aman-zulfiqar/w2w-relay/internal/wallet"
)

// FlagChecker reads operator switches.
type FlagChecker interface {
	Enabled(ctx context.Context, key string) (bool, error)
}

// batchFlagChecker is implemented by sources that can read several
// switches in one round trip.
type batchFlagChecker interface {
	FirstEnabled(ctx context.Context, keys ...string) (string, error)
}

// Engine is the main orchestrator: it owns the ledger and every contract
// on it, and records outcomes to the configured stores.
type Engine struct {
	cfg EngineConfig
	log *logrus.Logger

	chain    *ledger.Ledger
	registry *amm.Registry
	router   *amm.Router
	factory  *wallet.Factory
	sink     *buyback.Sink
	executor *Executor
	decision *DecisionEngine

	cache storage.OutcomeCache
	store storage.OutcomeStore
	flags FlagChecker

	mu     sync.Mutex
	recent []*models.OutcomeRecord
}

// EngineConfig holds configuration for the relay engine.
type EngineConfig struct {
	ExecutorAddress common.Address
	OwnerAddress    common.Address
	OperatorAddress common.Address
	FactoryAddress  common.Address
	FeeSinkAddress  common.Address

	GasPrice           *big.Int
	DefaultGasBudget   uint64
	MaxGasBudget       uint64
	AdminGasLimit      uint64
	DefaultSlippageBps uint16
	PayloadDeadline    time.Duration

	RegistryPath string

	// Storage
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RecentOutcomes int
	ClickHouse     cache.ClickHouseConfig
}

// DefaultEngineConfig returns development defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ExecutorAddress:    common.HexToAddress("0x0000000000000000000000000000000000e4ec01"),
		OwnerAddress:       common.HexToAddress("0x00000000000000000000000000000000000a0001"),
		OperatorAddress:    common.HexToAddress("0x00000000000000000000000000000000000a0002"),
		FactoryAddress:     common.HexToAddress("0x0000000000000000000000000000000000fac701"),
		FeeSinkAddress:     common.HexToAddress("0x0000000000000000000000000000000000b0bac4"),
		GasPrice:           new(big.Int).Set(DefaultGasPriceWei),
		DefaultGasBudget:   DefaultGasBudget,
		MaxGasBudget:       10_000_000,
		AdminGasLimit:      1_000_000,
		DefaultSlippageBps: 100,
		PayloadDeadline:    constants.PayloadDeadline,
		RegistryPath:       "internal/config/pools.json",
		RecentOutcomes:     constants.MaxRecentOutcomes,
	}
}

// EngineConfigFromConfig maps environment configuration onto the engine.
func EngineConfigFromConfig(c *config.Config) EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.ExecutorAddress = common.HexToAddress(c.ExecutorAddress)
	cfg.OwnerAddress = common.HexToAddress(c.OwnerAddress)
	cfg.OperatorAddress = common.HexToAddress(c.OperatorAddress)
	cfg.FactoryAddress = common.HexToAddress(c.FactoryAddress)
	cfg.FeeSinkAddress = common.HexToAddress(c.FeeSinkAddress)
	if p := c.GasPrice(); p != nil {
		cfg.GasPrice = p
	}
	cfg.DefaultGasBudget = c.DefaultGasBudget
	cfg.MaxGasBudget = c.MaxGasBudget
	cfg.AdminGasLimit = c.AdminGasLimit
	cfg.DefaultSlippageBps = uint16(c.DefaultSlippageBps)
	cfg.PayloadDeadline = c.PayloadDeadline
	cfg.RegistryPath = c.RegistryPath
	cfg.RedisAddr = c.RedisAddr
	cfg.RedisPassword = c.RedisPassword
	cfg.RedisDB = c.RedisDB
	cfg.RecentOutcomes = c.RecentOutcomes
	if c.ClickHouseAddr != "" {
		cfg.ClickHouse = cache.ClickHouseConfig{
			Addr:     c.ClickHouseAddr,
			Database: c.ClickHouseDatabase,
			Username: c.ClickHouseUsername,
			Password: c.ClickHousePassword,
		}
	}
	return cfg
}

// EngineOption customizes NewEngine.
type EngineOption func(*Engine)

// WithCache injects an outcome cache instead of dialing Redis.
func WithCache(c storage.OutcomeCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithStore injects an outcome store instead of dialing ClickHouse.
func WithStore(s storage.OutcomeStore) EngineOption {
	return func(e *Engine) { e.store = s }
}

// WithFlags injects the switch source.
func WithFlags(f FlagChecker) EngineOption {
	return func(e *Engine) { e.flags = f }
}

// WithRegistry uses an already parsed router registry.
func WithRegistry(r *amm.Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// NewEngine creates the relay with all dependencies.
func NewEngine(ctx context.Context, cfg EngineConfig, log *logrus.Logger, opts ...EngineOption) (*Engine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{cfg: cfg, log: log, chain: ledger.New()}
	for _, opt := range opts {
		opt(e)
	}

	// 1. Load router registry
	if e.registry == nil {
		reg, err := amm.LoadRegistry(cfg.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load router registry: %w", err)
		}
		e.registry = reg
	}

	// 2. Deploy the router and seed its pools
	router, err := amm.Deploy(e.chain, e.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy router: %w", err)
	}
	e.router = router

	// 3. Wallet factory
	e.factory = wallet.NewFactory(e.chain, cfg.FactoryAddress)

	// 4. Fee sink
	sink, err := buyback.New(e.chain, cfg.FeeSinkAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create fee sink: %w", err)
	}
	e.sink = sink

	// 5. Executor
	executor, err := NewExecutor(e.chain, e.factory, ExecutorConfig{
		Address:       cfg.ExecutorAddress,
		Owner:         cfg.OwnerAddress,
		Operator:      cfg.OperatorAddress,
		FeeSink:       cfg.FeeSinkAddress,
		GasPrice:      cfg.GasPrice,
		AdminGasLimit: cfg.AdminGasLimit,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	e.executor = executor

	// 6. Request validation
	e.decision = NewDecisionEngine(cfg.DefaultGasBudget, cfg.MaxGasBudget)

	// 7. Redis cache and flags
	if e.cache == nil && cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			RecentLimit: int64(cfg.RecentOutcomes),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		e.cache = rc
		if e.flags == nil {
			fs, err := flags.NewStore(rc.Client())
			if err != nil {
				return nil, err
			}
			e.flags = fs
		}
	}

	// 8. ClickHouse history
	if e.store == nil && cfg.ClickHouse.Addr != "" && cfg.ClickHouse.Database != "" {
		ch, err := cache.NewClickHouseStore(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		e.store = ch
	}

	log.WithFields(logrus.Fields{
		"executor": cfg.ExecutorAddress.Hex(),
		"operator": cfg.OperatorAddress.Hex(),
		"router":   router.Address().Hex(),
		"pools":    e.registry.PoolCount(),
	}).Info("relay engine ready")

	return e, nil
}

func (e *Engine) Ledger() *ledger.Ledger     { return e.chain }
func (e *Engine) Executor() *Executor        { return e.executor }
func (e *Engine) Router() *amm.Router        { return e.router }
func (e *Engine) Registry() *amm.Registry    { return e.registry }
func (e *Engine) Factory() *wallet.Factory   { return e.factory }
func (e *Engine) Sink() *buyback.Sink        { return e.sink }
func (e *Engine) Config() EngineConfig       { return e.cfg }
func (e *Engine) Flags() FlagChecker         { return e.flags }
func (e *Engine) Cache() storage.OutcomeCache { return e.cache }

// WalletInfo describes a user's proxy account.
type WalletInfo struct {
	User        common.Address    `json:"user"`
	Address     common.Address    `json:"address"`
	Owner       common.Address    `json:"owner"`
	Controller  common.Address    `json:"controller"`
	Referrer    common.Address    `json:"referrer"`
	Balances    map[string]string `json:"balances"`
	GasReserve  string            `json:"gas_reserve"`
	Initialized bool              `json:"initialized"`
}

// DeployWallet creates user's proxy account with the executor as its
// controller. value is charged to caller.
func (e *Engine) DeployWallet(ctx context.Context, caller, user, referrer common.Address, value *big.Int) (*WalletInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if user == (common.Address{}) {
		return nil, fmt.Errorf("%w: user required", ErrInvalidRequest)
	}
	_, err := e.chain.Transact(caller, e.cfg.AdminGasLimit, func() error {
		_, err := e.factory.Deploy(caller, user, e.executor.Address(), referrer, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("user", user.Hex()).Info("wallet deployed")
	return e.WalletInfo(ctx, user)
}

// Deposit credits asset to user's wallet from outside the ledger. It is
// the development faucet behind the deposit endpoint.
func (e *Engine) Deposit(ctx context.Context, user, asset common.Address, amount *big.Int) (*WalletInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	}
	_, err := e.chain.Transact(user, 0, func() error {
		w, ok := e.factory.WalletOf(user)
		if !ok {
			return fmt.Errorf("%w: no wallet for user %s", ErrUnknownWallet, user.Hex())
		}
		return e.chain.Mint(asset, w.Address(), amount)
	})
	if err != nil {
		return nil, err
	}
	return e.WalletInfo(ctx, user)
}

// WalletInfo reads a user's wallet and its balances of every known asset.
func (e *Engine) WalletInfo(ctx context.Context, user common.Address) (*WalletInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var info *WalletInfo
	e.chain.View(func() {
		w, ok := e.factory.WalletOf(user)
		if !ok {
			return
		}
		info = &WalletInfo{
			User:        user,
			Address:     w.Address(),
			Owner:       w.Owner(),
			Controller:  w.Controller(),
			Referrer:    w.Referrer(),
			Initialized: w.Initialized(),
			Balances:    map[string]string{amm.NativeSymbol: w.Balance(ledger.NativeAsset).String()},
			GasReserve:  e.executor.Guard().Reserve(e.cfg.DefaultGasBudget).String(),
		}
		for _, t := range e.registry.Tokens() {
			info.Balances[t.Symbol] = w.Balance(t.Address).String()
		}
	})
	if info == nil {
		return nil, fmt.Errorf("%w: no wallet for user %s", ErrUnknownWallet, user.Hex())
	}
	return info, nil
}

// Swap runs a request through validation, the pause switches and the
// executor, then records the outcome.
func (e *Engine) Swap(ctx context.Context, shape Shape, caller common.Address, req *SwapRequest) (*SwapOutcome, error) {
	if err := e.checkSwitches(ctx, shape); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}

	// 1. Fill defaults
	e.decision.EnrichRequest(req)

	// 2. Validate
	if err := e.decision.ValidateRequest(shape, req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	// 3. Execute
	outcome, err := e.executor.Swap(ctx, shape, caller, req)
	if err != nil {
		return nil, err
	}

	// 4. Record (best-effort)
	e.record(ctx, outcome)
	return outcome, nil
}

// SwapIntent builds a router request for intent and executes it.
func (e *Engine) SwapIntent(ctx context.Context, caller common.Address, intent *SwapIntent) (*SwapOutcome, *QuoteResult, error) {
	shape, req, quote, err := e.BuildRequest(ctx, intent)
	if err != nil {
		return nil, nil, err
	}
	outcome, err := e.Swap(ctx, shape, caller, req)
	return outcome, quote, err
}

func (e *Engine) checkSwitches(ctx context.Context, shape Shape) error {
	if e.flags == nil {
		return nil
	}
	keys := []string{flags.RelayPaused}
	switch shape {
	case ShapeETHForTokens:
		keys = append(keys, flags.SwapsETHForTokensOff)
	case ShapeTokens:
		keys = append(keys, flags.SwapsTokensOff)
	case ShapeTokensForETH:
		keys = append(keys, flags.SwapsTokensForETHOff)
	}
	if batch, ok := e.flags.(batchFlagChecker); ok {
		key, err := batch.FirstEnabled(ctx, keys...)
		if err != nil {
			e.log.WithError(err).Warn("flag lookup failed")
			return nil
		}
		if key != "" {
			return fmt.Errorf("%w: %s", ErrRelayPaused, key)
		}
		return nil
	}
	for _, key := range keys {
		on, err := e.flags.Enabled(ctx, key)
		if err != nil {
			e.log.WithError(err).WithField("flag", key).Warn("flag lookup failed")
			continue
		}
		if on {
			return fmt.Errorf("%w: %s", ErrRelayPaused, key)
		}
	}
	return nil
}

// DepositsEnabled reports whether the development faucet is switched on.
// Without a flag source the faucet is on.
func (e *Engine) DepositsEnabled(ctx context.Context) bool {
	if e.flags == nil {
		return true
	}
	on, err := e.flags.Enabled(ctx, flags.DepositFaucetEnabled)
	return err == nil && on
}

// CollectTokens passes through to the executor and refreshes the fee mirror.
func (e *Engine) CollectTokens(ctx context.Context, caller, token common.Address, amount *big.Int, to common.Address) (*CollectResult, error) {
	res, err := e.executor.CollectTokens(ctx, caller, token, amount, to)
	if err != nil {
		return nil, err
	}
	e.mirrorFees(ctx)
	return res, nil
}

// CollectETH passes through to the executor and refreshes the fee mirror.
func (e *Engine) CollectETH(ctx context.Context, caller common.Address, amount *big.Int, to common.Address) (*CollectResult, error) {
	res, err := e.executor.CollectETH(ctx, caller, amount, to)
	if err != nil {
		return nil, err
	}
	e.mirrorFees(ctx)
	return res, nil
}

// SweepFees sends accrued fees to the buy-back sink.
func (e *Engine) SweepFees(ctx context.Context, caller common.Address, assets []common.Address) (*CollectResult, error) {
	res, err := e.executor.SendFeesToBuyBacker(ctx, caller, assets)
	if err != nil {
		return nil, err
	}
	e.mirrorFees(ctx)
	return res, nil
}

// FeeBalance is the accrued fee, extra balance and sink holdings of an
// asset.
type FeeBalance struct {
	Asset     common.Address `json:"asset"`
	Accrued   string         `json:"accrued"`
	Extra     string         `json:"extra"`
	Collected string         `json:"collected"`
}

// Fees reports the fee position for asset.
func (e *Engine) Fees(asset common.Address) *FeeBalance {
	var fb *FeeBalance
	e.chain.View(func() {
		fb = &FeeBalance{
			Asset:     asset,
			Accrued:   e.executor.fees.Accrued(asset).String(),
			Extra:     e.executor.extra(asset).String(),
			Collected: e.sink.Received(asset).String(),
		}
	})
	return fb
}

// PendingFees lists every asset with uncollected fees.
func (e *Engine) PendingFees() map[common.Address]*big.Int {
	return e.sink.Pending(e.executor, e.executor.FeeAssets())
}

// RecentOutcomes reads the cache, or the in-process buffer without one.
func (e *Engine) RecentOutcomes(ctx context.Context, limit int64) ([]*models.OutcomeRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultRecentOutcomes
	}
	if e.cache != nil {
		return e.cache.GetRecentOutcomes(ctx, limit)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n := int(limit)
	if n > len(e.recent) {
		n = len(e.recent)
	}
	return append([]*models.OutcomeRecord(nil), e.recent[:n]...), nil
}

func (e *Engine) record(ctx context.Context, o *SwapOutcome) {
	rec := OutcomeRecord(o)

	e.mu.Lock()
	e.recent = append([]*models.OutcomeRecord{rec}, e.recent...)
	if max := e.cfg.RecentOutcomes; max > 0 && len(e.recent) > max {
		e.recent = e.recent[:max]
	}
	e.mu.Unlock()

	logger := e.log.WithField("execution_id", o.ExecutionID)
	if e.cache != nil {
		if err := e.cache.AddRecentOutcome(ctx, rec); err != nil {
			logger.WithError(err).Warn("failed to cache outcome")
		}
		if err := e.cache.PublishOutcome(ctx, rec); err != nil {
			logger.WithError(err).Warn("failed to publish outcome")
		}
		if !o.Success {
			signal := &models.ErrorSignal{
				ExecutionID: o.ExecutionID,
				Timestamp:   o.DoneAt,
				Wallet:      o.Wallet.Hex(),
				Reason:      o.Reason,
				Data:        hexutil.Encode(o.ErrorData),
			}
			if err := e.cache.PublishError(ctx, signal); err != nil {
				logger.WithError(err).Warn("failed to publish error signal")
			}
		}
	}
	if e.store != nil {
		if err := e.store.InsertOutcome(ctx, rec); err != nil {
			logger.WithError(err).Warn("failed to store outcome")
		}
	}
	if o.Success {
		e.mirrorFees(ctx)
	}
}

func (e *Engine) mirrorFees(ctx context.Context) {
	if e.cache == nil {
		return
	}
	var balances []models.FeeBalance
	e.chain.View(func() {
		for _, asset := range e.executor.fees.Assets() {
			balances = append(balances, models.FeeBalance{
				Asset:   asset.Hex(),
				Accrued: e.executor.fees.Accrued(asset).String(),
			})
		}
	})
	if err := e.cache.SetFees(ctx, balances); err != nil {
		e.log.WithError(err).Warn("failed to mirror fees")
	}
}

// OutcomeRecord flattens an outcome for storage.
func OutcomeRecord(o *SwapOutcome) *models.OutcomeRecord {
	str := func(v *big.Int) string {
		if v == nil {
			return "0"
		}
		return v.String()
	}
	rec := &models.OutcomeRecord{
		ExecutionID:   o.ExecutionID,
		Timestamp:     o.DoneAt,
		Shape:         string(o.Shape),
		Wallet:        o.Wallet.Hex(),
		FromAsset:     o.FromAsset.Hex(),
		ToAsset:       o.ToAsset.Hex(),
		Amount:        str(o.Amount),
		Success:       o.Success,
		Reason:        o.Reason,
		GrossOutput:   str(o.GrossOutput),
		Fee:           str(o.Fee),
		FeeRateBps:    uint16(o.FeeRate),
		NetDelivered:  str(o.NetDelivered),
		SourceSpent:   str(o.SourceSpent),
		GasUsed:       o.GasUsed,
		GasReimbursed: str(o.GasReimbursed),
	}
	if o.Recipient != (common.Address{}) {
		rec.Recipient = o.Recipient.Hex()
	}
	return rec
}

// Close cleans up all resources.
func (e *Engine) Close() error {
	var errs []error

	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

package server

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/w2w-relay/internal/constants"
	"github.com/aman-zulfiqar/w2w-relay/internal/flags"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine  *swapengine.Engine // Relay engine (ledger, executor, router)
	Flags   *flags.Store       // Redis-backed relay switches (optional)
	DevMode bool               // Enable detailed error responses in development
	Logger  *logrus.Logger     // Structured logger
	Timeout time.Duration      // Per-request timeout for engine calls
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail maps an engine error onto a JSON error response
func (h *Handlers) fail(c echo.Context, action string, err error) error {
	code, safe := statusFor(err)
	if code >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.WithError(err).WithField("action", action).Error("request failed")
	}
	msg := action + " failed"
	if safe {
		msg = err.Error()
	}
	return h.err(c, code, msg, map[string]any{"err": err.Error()})
}

// withTimeout creates a context with timeout, defaulting to the configured
// request timeout when d <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = h.Timeout
	}
	if d <= 0 {
		d = constants.RequestTimeout
	}
	return context.WithTimeout(ctx, d)
}

// caller resolves the ledger identity behind the request's API key. Without
// key auth the fallback role is used.
func (h *Handlers) caller(c echo.Context, fallback string) common.Address {
	role, _ := c.Get(constants.RoleKey).(string)
	if role == "" {
		role = fallback
	}
	if role == constants.RoleOwner {
		return h.Engine.Executor().Owner()
	}
	return h.Engine.Executor().Operator()
}

func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("required")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.New("must be a non-negative integer")
	}
	return v, nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("must be a 20-byte hex address")
	}
	return common.HexToAddress(s), nil
}

// optionalAddress parses s, treating empty as the zero address
func optionalAddress(s string) (common.Address, error) {
	if strings.TrimSpace(s) == "" {
		return common.Address{}, nil
	}
	return parseAddress(s)
}

// Health returns relay identities and a liveness flag
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		OK:       true,
		Executor: h.Engine.Executor().Address().Hex(),
		Operator: h.Engine.Executor().Operator().Hex(),
		Router:   h.Engine.Router().Address().Hex(),
		Pools:    h.Engine.Registry().PoolCount(),
	})
}

// DeployWallet creates a proxy account controlled by the executor
func (h *Handlers) DeployWallet(c echo.Context) error {
	var req DeployWalletRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	user, err := parseAddress(req.User)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid user", map[string]any{"user": err.Error()})
	}
	referrer, err := optionalAddress(req.Referrer)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid referrer", map[string]any{"referrer": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	info, err := h.Engine.DeployWallet(ctx, h.caller(c, constants.RoleOperator), user, referrer, nil)
	if err != nil {
		return h.fail(c, "deploy wallet", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// WalletInfo returns a user's proxy account with balances
func (h *Handlers) WalletInfo(c echo.Context) error {
	user, err := parseAddress(c.Param("user"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid user", map[string]any{"user": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	info, err := h.Engine.WalletInfo(ctx, user)
	if err != nil {
		return h.fail(c, "wallet info", err)
	}
	return c.JSON(http.StatusOK, info)
}

// Deposit credits a wallet from outside the ledger when the faucet is on
func (h *Handlers) Deposit(c echo.Context) error {
	user, err := parseAddress(c.Param("user"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid user", map[string]any{"user": err.Error()})
	}
	var req DepositRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	asset, err := h.Engine.Registry().ResolveAsset(req.Asset)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asset", map[string]any{"asset": err.Error()})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	if !h.Engine.DepositsEnabled(ctx) {
		return h.err(c, http.StatusForbidden, "deposits are disabled", map[string]any{"flag": flags.DepositFaucetEnabled})
	}
	info, err := h.Engine.Deposit(ctx, user, asset, amount)
	if err != nil {
		return h.fail(c, "deposit", err)
	}
	return c.JSON(http.StatusOK, info)
}

// RecentOutcomes returns the most recent swap outcomes
// Accepts limit query parameter (default: 20, range: 1-100)
func (h *Handlers) RecentOutcomes(c echo.Context) error {
	limit := constants.DefaultRecentOutcomes
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > constants.MaxRecentOutcomes {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Engine.RecentOutcomes(ctx, int64(limit))
	if err != nil {
		return h.fail(c, "recent outcomes", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// PendingFees lists every asset with fees still accrued on the executor
func (h *Handlers) PendingFees(c echo.Context) error {
	pending := h.Engine.PendingFees()
	items := make([]PendingFee, 0, len(pending))
	for asset, v := range pending {
		items = append(items, PendingFee{Asset: asset.Hex(), Accrued: v.String()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Asset < items[j].Asset })
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Fees returns the fee position of one asset
func (h *Handlers) Fees(c echo.Context) error {
	asset, err := h.Engine.Registry().ResolveAsset(c.Param("asset"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asset", map[string]any{"asset": err.Error()})
	}
	return c.JSON(http.StatusOK, h.Engine.Fees(asset))
}

// SweepFees sends accrued fees to the fee sink
func (h *Handlers) SweepFees(c echo.Context) error {
	var req SweepRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	assets := make([]common.Address, 0, len(req.Assets))
	for _, s := range req.Assets {
		asset, err := h.Engine.Registry().ResolveAsset(s)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid asset", map[string]any{"asset": err.Error()})
		}
		assets = append(assets, asset)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	res, err := h.Engine.SweepFees(ctx, h.caller(c, constants.RoleOwner), assets)
	if err != nil {
		return h.fail(c, "sweep fees", err)
	}
	return c.JSON(http.StatusOK, res)
}

// CollectTokens withdraws extra token balance from the executor
func (h *Handlers) CollectTokens(c echo.Context) error {
	return h.collect(c, false)
}

// CollectETH withdraws extra native balance from the executor
func (h *Handlers) CollectETH(c echo.Context) error {
	return h.collect(c, true)
}

func (h *Handlers) collect(c echo.Context, native bool) error {
	var req CollectRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}
	to, err := parseAddress(req.To)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid recipient", map[string]any{"to": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	caller := h.caller(c, constants.RoleOwner)
	var res *swapengine.CollectResult
	if native {
		res, err = h.Engine.CollectETH(ctx, caller, amount, to)
	} else {
		token, perr := h.Engine.Registry().ResolveAsset(req.Token)
		if perr != nil {
			return h.err(c, http.StatusBadRequest, "invalid token", map[string]any{"token": perr.Error()})
		}
		res, err = h.Engine.CollectTokens(ctx, caller, token, amount, to)
	}
	if err != nil {
		return h.fail(c, "collect", err)
	}
	return c.JSON(http.StatusOK, res)
}

// SetOperator rotates the address allowed to submit swaps
func (h *Handlers) SetOperator(c echo.Context) error {
	var req SetOperatorRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	op, err := parseAddress(req.Operator)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid operator", map[string]any{"operator": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	if err := h.Engine.Executor().SetOperator(ctx, h.caller(c, constants.RoleOwner), op); err != nil {
		return h.fail(c, "set operator", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"operator": op.Hex()})
}

// FlagsUpsert creates or updates a feature flag with the given key and value
// Validates key format and returns the created/updated flag
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing feature flag with the given key
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a feature flag by its key
// Returns 404 if flag doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all relay switches
func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a feature flag by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

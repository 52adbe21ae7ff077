package server

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/w2w-relay/internal/constants"
	"github.com/aman-zulfiqar/w2w-relay/internal/fees"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

// Quote prices a swap against the bundled router without executing it
func (h *Handlers) Quote(c echo.Context) error {
	from := strings.TrimSpace(c.QueryParam("from"))
	to := strings.TrimSpace(c.QueryParam("to"))
	if from == "" {
		return h.err(c, http.StatusBadRequest, "invalid from", map[string]any{"from": "required"})
	}
	if to == "" {
		return h.err(c, http.StatusBadRequest, "invalid to", map[string]any{"to": "required"})
	}
	amount, err := parseAmount(c.QueryParam("amount"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	var slippageBps *uint16
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil || n > 10_000 {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "must be 0-10000"})
		}
		tmp := uint16(n)
		slippageBps = &tmp
	}

	var feeBps uint16
	if v := strings.TrimSpace(c.QueryParam("feeBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid feeBps", map[string]any{"feeBps": "must be uint16"})
		}
		feeBps = uint16(n)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	out, err := h.Engine.Quote(ctx, &swapengine.SwapIntent{
		FromAsset:   from,
		ToAsset:     to,
		Amount:      amount,
		SlippageBps: slippageBps,
		Fee:         fees.Rate(feeBps),
	})
	if err != nil {
		return h.fail(c, "quote", err)
	}
	return c.JSON(http.StatusOK, out)
}

// Swap returns the handler for one swap shape. The body carries the
// counterparty target and opaque payload.
func (h *Handlers) Swap(shape swapengine.Shape) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body SwapRequestBody
		if err := c.Bind(&body); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid json", nil)
		}
		req, details := h.parseSwap(&body)
		if details != nil {
			return h.err(c, http.StatusBadRequest, "invalid swap request", details)
		}

		ctx, cancel := h.withTimeout(c.Request().Context(), 0)
		defer cancel()

		out, err := h.Engine.Swap(ctx, shape, h.caller(c, constants.RoleOperator), req)
		if err != nil {
			return h.fail(c, "swap", err)
		}
		return c.JSON(http.StatusOK, SwapResponse{Outcome: out})
	}
}

// SwapIntent quotes, builds the router payload and executes
func (h *Handlers) SwapIntent(c echo.Context) error {
	var body SwapIntentBody
	if err := c.Bind(&body); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	user, err := parseAddress(body.User)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid user", map[string]any{"user": err.Error()})
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	out, quote, err := h.Engine.SwapIntent(ctx, h.caller(c, constants.RoleOperator), &swapengine.SwapIntent{
		User:        user,
		FromAsset:   body.FromAsset,
		ToAsset:     body.ToAsset,
		Amount:      amount,
		SlippageBps: body.SlippageBps,
		Fee:         fees.Rate(body.FeeBps),
		PayToOwner:  body.PayToOwner,
		GasBudget:   body.GasBudget,
	})
	if err != nil {
		return h.fail(c, "swap", err)
	}
	return c.JSON(http.StatusOK, SwapResponse{Outcome: out, Quote: quote})
}

// parseSwap converts a raw body; a non-nil map lists invalid fields
func (h *Handlers) parseSwap(body *SwapRequestBody) (*swapengine.SwapRequest, map[string]any) {
	details := map[string]any{}
	req := &swapengine.SwapRequest{
		Fee:        fees.Rate(body.FeeBps),
		PayToOwner: body.PayToOwner,
		GasBudget:  body.GasBudget,
	}

	var err error
	if req.Wallet, err = parseAddress(body.Wallet); err != nil {
		details["wallet"] = err.Error()
	}
	if req.FromAsset, err = h.Engine.Registry().ResolveAsset(body.FromAsset); err != nil {
		details["from_asset"] = err.Error()
	}
	if req.ToAsset, err = h.Engine.Registry().ResolveAsset(body.ToAsset); err != nil {
		details["to_asset"] = err.Error()
	}
	if req.Amount, err = parseAmount(body.Amount); err != nil {
		details["amount"] = err.Error()
	}
	if strings.TrimSpace(body.MinReturn) == "" {
		req.MinReturn = new(big.Int)
	} else if req.MinReturn, err = parseAmount(body.MinReturn); err != nil {
		details["min_return"] = err.Error()
	}
	if req.Target, err = parseAddress(body.Target); err != nil {
		details["target"] = err.Error()
	}
	if req.Spender, err = optionalAddress(body.Spender); err != nil {
		details["spender"] = err.Error()
	}
	if body.Payload != "" {
		if req.Payload, err = hexutil.Decode(body.Payload); err != nil {
			details["payload"] = err.Error()
		}
	}

	if len(details) > 0 {
		return nil, details
	}
	return req, nil
}

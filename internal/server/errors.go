package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/w2w-relay/internal/ledger"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
	"github.com/aman-zulfiqar/w2w-relay/internal/wallet"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, 401, 429)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps relay errors onto HTTP status codes. The second return
// reports whether the error message is safe to show to clients.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, swapengine.ErrOnlyExecutor),
		errors.Is(err, swapengine.ErrOnlyOwner),
		errors.Is(err, wallet.ErrUnauthorized):
		return http.StatusForbidden, true
	case errors.Is(err, swapengine.ErrRelayPaused):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, swapengine.ErrInvalidRequest),
		errors.Is(err, swapengine.ErrFeeTooHigh),
		errors.Is(err, ledger.ErrUnknownToken):
		return http.StatusBadRequest, true
	case errors.Is(err, swapengine.ErrUnknownWallet):
		return http.StatusNotFound, true
	case errors.Is(err, wallet.ErrWalletExists):
		return http.StatusConflict, true
	case errors.Is(err, swapengine.ErrNotEnoughETH),
		errors.Is(err, swapengine.ErrInsufficientExtraTokens),
		errors.Is(err, swapengine.ErrInsufficientExtraETH),
		errors.Is(err, swapengine.ErrNoFeeSink),
		errors.Is(err, ledger.ErrOutOfGas):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, false
	}
	return http.StatusInternalServerError, false
}

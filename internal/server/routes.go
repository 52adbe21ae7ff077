package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/w2w-relay/internal/constants"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// API key authentication: the operator key submits swaps, the admin key
	// acts as the executor owner
	if cfg.APIKey != "" || cfg.AdminAPIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + constants.APIKeyHeader,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				switch {
				case cfg.AdminAPIKey != "" && key == cfg.AdminAPIKey:
					c.Set(constants.RoleKey, constants.RoleOwner)
				case cfg.APIKey != "" && key == cfg.APIKey:
					c.Set(constants.RoleKey, constants.RoleOperator)
				default:
					return false, nil
				}
				return true, nil
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/quote", h.Quote)

	// Proxy accounts
	v1.POST("/wallets", h.DeployWallet)
	v1.GET("/wallets/:user", h.WalletInfo)
	v1.POST("/wallets/:user/deposit", h.Deposit)

	// Swaps with rate limiting
	swaps := v1.Group("/swaps")
	swaps.GET("/recent", h.RecentOutcomes)
	limited := swaps.Group("")
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limited.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimitRPS),
			Burst:     burst,
			ExpiresIn: 2 * time.Minute,
		})))
	}
	limited.POST("/eth-for-tokens", h.Swap(swapengine.ShapeETHForTokens))
	limited.POST("/tokens", h.Swap(swapengine.ShapeTokens))
	limited.POST("/tokens-for-eth", h.Swap(swapengine.ShapeTokensForETH))
	limited.POST("/intent", h.SwapIntent)

	// Fees and owner collection
	v1.GET("/fees", h.PendingFees)
	v1.GET("/fees/:asset", h.Fees)
	v1.POST("/fees/sweep", h.SweepFees)
	v1.POST("/collect/tokens", h.CollectTokens)
	v1.POST("/collect/eth", h.CollectETH)
	v1.POST("/operator", h.SetOperator)

	// Relay switches, owner key only
	flagGroup := v1.Group("/flags", RequireRole(constants.RoleOwner))
	flagGroup.GET("", h.FlagsList)           // List all flags
	flagGroup.POST("", h.FlagsUpsert)        // Create new flag
	flagGroup.GET("/:key", h.FlagsGet)       // Get specific flag
	flagGroup.PUT("/:key", h.FlagsUpdate)    // Update existing flag
	flagGroup.DELETE("/:key", h.FlagsDelete) // Delete flag

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}

// RequireRole rejects requests authenticated with a key of another role.
// Without key auth every request passes.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if got, ok := c.Get(constants.RoleKey).(string); ok && got != role {
				return c.JSON(http.StatusForbidden, ErrorResponse{Error: role + " key required", Code: http.StatusForbidden})
			}
			return next(c)
		}
	}
}

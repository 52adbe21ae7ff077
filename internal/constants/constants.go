package constants

import "time"

// Recent outcome list bounds.
const (
	MaxRecentOutcomes     = 100
	DefaultRecentOutcomes = 20
)

// HTTP API.
const (
	APIKeyHeader    = "X-API-Key"
	CallerKey       = "caller"
	RoleKey         = "role"
	RoleOperator    = "operator"
	RoleOwner       = "owner"
	DefaultHTTPAddr = ":8090"
)

// Timeouts.
const (
	RequestTimeout  = 10 * time.Second
	ShutdownTimeout = 10 * time.Second
	PayloadDeadline = 2 * time.Minute
)

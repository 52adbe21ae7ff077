package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/w2w-relay/internal/models"
)

// OutcomeCache keeps hot relay state for operators and monitors.
type OutcomeCache interface {
	// AddRecentOutcome pushes an outcome onto the bounded recent list
	AddRecentOutcome(ctx context.Context, outcome *models.OutcomeRecord) error

	// GetRecentOutcomes returns the newest outcomes first
	GetRecentOutcomes(ctx context.Context, limit int64) ([]*models.OutcomeRecord, error)

	// SetFees mirrors the fee ledger
	SetFees(ctx context.Context, balances []models.FeeBalance) error

	// GetFees reads the fee mirror
	GetFees(ctx context.Context) ([]models.FeeBalance, error)

	// PublishOutcome fans an outcome out on Pub/Sub
	PublishOutcome(ctx context.Context, outcome *models.OutcomeRecord) error

	// PublishError publishes a soft-failure signal
	PublishError(ctx context.Context, signal *models.ErrorSignal) error

	Ping(ctx context.Context) error
	io.Closer
}

// OutcomeStore persists outcome history.
type OutcomeStore interface {
	InsertOutcome(ctx context.Context, outcome *models.OutcomeRecord) error
	Ping(ctx context.Context) error
	io.Closer
}

// ErrorHandler processes soft-failure signals.
type ErrorHandler func(*models.ErrorSignal)

package models

import "time"

// OutcomeRecord is the flattened, storage-friendly form of a swap outcome.
// Amounts are decimal strings in base units.
type OutcomeRecord struct {
	ExecutionID   string    `json:"execution_id"`
	Timestamp     time.Time `json:"timestamp"`
	Shape         string    `json:"shape"`
	Wallet        string    `json:"wallet"`
	FromAsset     string    `json:"from_asset"`
	ToAsset       string    `json:"to_asset"`
	Amount        string    `json:"amount"`
	Success       bool      `json:"success"`
	Reason        string    `json:"reason,omitempty"`
	GrossOutput   string    `json:"gross_output"`
	Fee           string    `json:"fee"`
	FeeRateBps    uint16    `json:"fee_rate_bps"`
	NetDelivered  string    `json:"net_delivered"`
	SourceSpent   string    `json:"source_spent"`
	Recipient     string    `json:"recipient,omitempty"`
	GasUsed       uint64    `json:"gas_used"`
	GasReimbursed string    `json:"gas_reimbursed"`
}

// ErrorSignal is published for every soft-failed swap so monitors can
// react without replaying outcomes.
type ErrorSignal struct {
	ExecutionID string    `json:"execution_id"`
	Timestamp   time.Time `json:"timestamp"`
	Wallet      string    `json:"wallet"`
	Reason      string    `json:"reason"`
	Data        string    `json:"data"`
}

// FeeBalance mirrors one fee-ledger entry for the buy-back aggregator.
type FeeBalance struct {
	Asset   string `json:"asset"`
	Accrued string `json:"accrued"`
}

package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/aman-zulfiqar/w2w-relay/internal/models"
)

const outcomesTableDDL = `
	CREATE TABLE IF NOT EXISTS relay_outcomes (
		execution_id   String,
		timestamp      DateTime64(3),
		shape          LowCardinality(String),
		wallet         String,
		from_asset     String,
		to_asset       String,
		amount         String,
		success        Bool,
		reason         String,
		gross_output   String,
		fee            String,
		fee_rate_bps   UInt16,
		net_delivered  String,
		source_spent   String,
		recipient      String,
		gas_used       UInt64,
		gas_reimbursed String
	) ENGINE = MergeTree
	ORDER BY (wallet, timestamp)
`

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore keeps the outcome history.
type ClickHouseStore struct {
	conn driver.Conn
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	username := cfg.Username
	if username == "" {
		username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, outcomesTableDDL); err != nil {
		return nil, fmt.Errorf("failed to create outcomes table: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) InsertOutcome(ctx context.Context, o *models.OutcomeRecord) error {
	query := `
		INSERT INTO relay_outcomes (
			execution_id, timestamp, shape, wallet, from_asset, to_asset,
			amount, success, reason, gross_output, fee, fee_rate_bps,
			net_delivered, source_spent, recipient, gas_used, gas_reimbursed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		o.ExecutionID,
		o.Timestamp,
		o.Shape,
		o.Wallet,
		o.FromAsset,
		o.ToAsset,
		o.Amount,
		o.Success,
		o.Reason,
		o.GrossOutput,
		o.Fee,
		o.FeeRateBps,
		o.NetDelivered,
		o.SourceSpent,
		o.Recipient,
		o.GasUsed,
		o.GasReimbursed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}

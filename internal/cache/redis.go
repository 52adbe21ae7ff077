package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/w2w-relay/internal/models"
)

const (
	recentOutcomesKey = "w2w:outcomes:recent"
	feesKey           = "w2w:fees"
)

// RedisConfig configures the relay's Redis connection.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	RecentLimit int64
}

// RedisCache stores recent outcomes and the fee mirror, and publishes
// relay signals.
type RedisCache struct {
	client      *redis.Client
	pubsub      *PubSubManager
	recentLimit int64
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.RecentLimit), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, recentLimit int64) *RedisCache {
	if recentLimit <= 0 {
		recentLimit = 100
	}
	return &RedisCache{
		client:      client,
		pubsub:      NewPubSubManager(client),
		recentLimit: recentLimit,
	}
}

// Client exposes the underlying client for the flag store.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// PubSub returns the Pub/Sub helper sharing this connection.
func (r *RedisCache) PubSub() *PubSubManager {
	return r.pubsub
}

func (r *RedisCache) AddRecentOutcome(ctx context.Context, outcome *models.OutcomeRecord) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentOutcomesKey, data)
	pipe.LTrim(ctx, recentOutcomesKey, 0, r.recentLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent outcome: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentOutcomes(ctx context.Context, limit int64) ([]*models.OutcomeRecord, error) {
	if limit <= 0 || limit > r.recentLimit {
		limit = r.recentLimit
	}
	vals, err := r.client.LRange(ctx, recentOutcomesKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent outcomes: %w", err)
	}

	out := make([]*models.OutcomeRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.OutcomeRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (r *RedisCache) SetFees(ctx context.Context, balances []models.FeeBalance) error {
	if len(balances) == 0 {
		return nil
	}
	values := make(map[string]any, len(balances))
	for _, b := range balances {
		values[b.Asset] = b.Accrued
	}
	if err := r.client.HSet(ctx, feesKey, values).Err(); err != nil {
		return fmt.Errorf("set fees: %w", err)
	}
	return nil
}

func (r *RedisCache) GetFees(ctx context.Context) ([]models.FeeBalance, error) {
	vals, err := r.client.HGetAll(ctx, feesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get fees: %w", err)
	}
	out := make([]models.FeeBalance, 0, len(vals))
	for asset, accrued := range vals {
		out = append(out, models.FeeBalance{Asset: asset, Accrued: accrued})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (r *RedisCache) PublishOutcome(ctx context.Context, outcome *models.OutcomeRecord) error {
	return r.pubsub.PublishOutcome(ctx, outcome)
}

func (r *RedisCache) PublishError(ctx context.Context, signal *models.ErrorSignal) error {
	return r.pubsub.PublishError(ctx, signal)
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

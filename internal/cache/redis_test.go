package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/w2w-relay/internal/models"
)

func newTestCache(t *testing.T, limit int64) *RedisCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})

	return NewRedisCacheFromClient(client, limit)
}

func TestRedisCache_RecentOutcomesBounded(t *testing.T) {
	c := newTestCache(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.AddRecentOutcome(ctx, &models.OutcomeRecord{
			ExecutionID: fmt.Sprintf("exec-%d", i),
			Success:     true,
		}))
	}

	got, err := c.GetRecentOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "exec-4", got[0].ExecutionID)
	assert.Equal(t, "exec-2", got[2].ExecutionID)

	got, err = c.GetRecentOutcomes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestRedisCache_FeeMirror(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.SetFees(ctx, nil))
	require.NoError(t, c.SetFees(ctx, []models.FeeBalance{
		{Asset: "0xB", Accrued: "7"},
		{Asset: "0xA", Accrued: "3"},
	}))
	require.NoError(t, c.SetFees(ctx, []models.FeeBalance{{Asset: "0xB", Accrued: "0"}}))

	got, err := c.GetFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.FeeBalance{
		{Asset: "0xA", Accrued: "3"},
		{Asset: "0xB", Accrued: "0"},
	}, got)
}

func TestPubSub_ErrorSignals(t *testing.T) {
	c := newTestCache(t, 10)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	ps := c.PubSub().WithLogger(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *models.ErrorSignal, 1)
	go func() {
		_ = ps.SubscribeErrors(ctx, func(s *models.ErrorSignal) { got <- s })
	}()

	// The subscription is confirmed asynchronously; republish until it lands.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		require.NoError(t, c.PublishError(ctx, &models.ErrorSignal{
			ExecutionID: "exec-1",
			Reason:      "W2W:Less than minimum received",
		}))
		select {
		case s := <-got:
			assert.Equal(t, "exec-1", s.ExecutionID)
			assert.Equal(t, "W2W:Less than minimum received", s.Reason)
			return
		case <-ctx.Done():
			t.Fatal("no error signal received")
		case <-ticker.C:
		}
	}
}

func TestWalletChannel(t *testing.T) {
	assert.Equal(t, "w2w:wallet:0xabc", WalletChannel("0xABC"))
}

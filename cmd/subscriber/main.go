// ============================================================================
// cmd/subscriber/main.go - Relay event subscriber (consumer)
// ============================================================================
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/w2w-relay/internal/cache"
	"github.com/aman-zulfiqar/w2w-relay/internal/config"
	"github.com/aman-zulfiqar/w2w-relay/internal/models"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg := config.Load()
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	pubsub := cache.NewPubSubManager(client).WithLogger(logger)

	// Soft-failed swaps
	go func() {
		err := pubsub.SubscribeErrors(ctx, func(s *models.ErrorSignal) {
			logger.WithFields(logrus.Fields{
				"execution_id": s.ExecutionID,
				"wallet":       s.Wallet,
				"data":         s.Data,
			}).Warnf("swap failed: %s", s.Reason)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("error subscription ended")
		}
	}()

	// Every wallet's outcomes
	go func() {
		err := pubsub.SubscribeOutcomes(ctx, cache.WalletChannel("*"), func(o *models.OutcomeRecord) {
			if !o.Success {
				return
			}
			logger.WithFields(logrus.Fields{
				"execution_id": o.ExecutionID,
				"wallet":       o.Wallet,
				"shape":        o.Shape,
			}).Infof("swapped %s %s -> %s %s (fee %s)", o.Amount, o.FromAsset, o.NetDelivered, o.ToAsset, o.Fee)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("outcome subscription ended")
		}
	}()

	logger.WithField("redis", addr).Info("subscriber running, press Ctrl+C to stop")

	<-sigChan
	logger.Info("shutting down subscriber")
}

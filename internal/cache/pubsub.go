package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/w2w-relay/internal/models"
)

// Pub/Sub channels.
const (
	ChannelOutcomes     = "w2w:outcomes"
	ChannelErrors       = "w2w:errors"
	channelWalletPrefix = "w2w:wallet:"
)

type PubSubManager struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewPubSubManager(client *redis.Client) *PubSubManager {
	return &PubSubManager{client: client, log: logrus.StandardLogger()}
}

// WithLogger sets the logger used by subscriptions.
func (p *PubSubManager) WithLogger(log *logrus.Logger) *PubSubManager {
	if log != nil {
		p.log = log
	}
	return p
}

// WalletChannel is the per-wallet channel name.
func WalletChannel(wallet string) string {
	return channelWalletPrefix + strings.ToLower(wallet)
}

// PublishOutcome publishes to the global and the wallet channel.
func (p *PubSubManager) PublishOutcome(ctx context.Context, outcome *models.OutcomeRecord) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, ChannelOutcomes, data)
	pipe.Publish(ctx, WalletChannel(outcome.Wallet), data)
	_, err = pipe.Exec(ctx)
	return err
}

// PublishError publishes a soft-failure signal.
func (p *PubSubManager) PublishError(ctx context.Context, signal *models.ErrorSignal) error {
	data, err := json.Marshal(signal)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, ChannelErrors, data).Err()
}

// SubscribeErrors blocks delivering error signals until ctx is done.
func (p *PubSubManager) SubscribeErrors(ctx context.Context, handler func(*models.ErrorSignal)) error {
	sub := p.client.Subscribe(ctx, ChannelErrors)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", ChannelErrors, err)
	}
	p.log.WithField("channel", ChannelErrors).Info("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var signal models.ErrorSignal
			if err := json.Unmarshal([]byte(msg.Payload), &signal); err != nil {
				p.log.WithError(err).Warn("failed to unmarshal error signal")
				continue
			}
			handler(&signal)
		}
	}
}

// SubscribeOutcomes blocks delivering outcomes matching pattern (for
// example "w2w:wallet:*") until ctx is done.
func (p *PubSubManager) SubscribeOutcomes(ctx context.Context, pattern string, handler func(*models.OutcomeRecord)) error {
	sub := p.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	p.log.WithField("pattern", pattern).Info("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var rec models.OutcomeRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				p.log.WithError(err).Warn("failed to unmarshal outcome")
				continue
			}
			handler(&rec)
		}
	}
}

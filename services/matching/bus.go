package matching

import (
	"context"
	"encoding/json"
	"fmt"

	"pawbook/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const statusChannelPrefix = "booking:status:"

// RedisStatusBus publishes booking snapshots on a per-booking pub/sub channel.
type RedisStatusBus struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStatusBus(client *redis.Client, logger *zap.Logger) *RedisStatusBus {
	return &RedisStatusBus{client: client, logger: logger}
}

func statusChannel(bookingID string) string {
	return statusChannelPrefix + bookingID
}

func (b *RedisStatusBus) Publish(ctx context.Context, req models.BookingRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}
	if err := b.client.Publish(ctx, statusChannel(req.ID), payload).Err(); err != nil {
		return fmt.Errorf("publish booking %s: %w", req.ID, err)
	}
	return nil
}

func (b *RedisStatusBus) Subscribe(ctx context.Context, bookingID string) (<-chan models.BookingRequest, error) {
	pubsub := b.client.Subscribe(ctx, statusChannel(bookingID))
	// wait for the subscription to be confirmed so no publish after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe booking %s: %w", bookingID, err)
	}

	out := make(chan models.BookingRequest, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var req models.BookingRequest
				if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
					b.logger.Warn("dropping malformed status message",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- req:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

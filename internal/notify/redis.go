package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"tourguide-payments/internal/domain"

	"github.com/redis/go-redis/v9"
)

const EventsChannel = "payments:events"

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RedisPublisher publishes events as JSON on a pub/sub channel so other
// services (mail, provider dashboards) can react to payment transitions.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, channel: EventsChannel}
}

func (p *RedisPublisher) Notify(ctx context.Context, event domain.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

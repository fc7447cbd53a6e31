package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/lucas6028/silver-server/config"
	"github.com/redis/go-redis/v9"
)

// RedisClient implements Backend over Redis pub/sub. Unlike the queue
// backends, delivery is fan-out: every subscriber on a channel sees every
// message, which is what the live-sync watchers want.
type RedisClient struct {
	client *redis.Client
}

// redisEnvelope is the wire format carrying attributes alongside the payload.
type redisEnvelope struct {
	ID         string            `json:"id"`
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewRedisClient constructs a Redis pub/sub client from config.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisClient{client: client}, nil
}

// Publish sends a message to the named channel.
func (r *RedisClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("redis channel is required")
	}

	envelope := redisEnvelope{
		ID:         newMessageID(),
		Data:       data,
		Attributes: attrs,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return "", err
	}
	return envelope.ID, nil
}

// Subscribe consumes messages from the named channel. Redis pub/sub has no
// acks and no competing-consumer mode; every subscriber sees every
// message, so run exactly one worker per queue channel on this backend.
func (r *RedisClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return r.SubscribeBroadcast(ctx, channel, handler)
}

// SubscribeBroadcast consumes messages from the named channel; handler
// errors are swallowed after the handler returns.
func (r *RedisClient) SubscribeBroadcast(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("redis channel is required")
	}

	sub := r.client.Subscribe(ctx, channel)
	defer func() {
		_ = sub.Close()
	}()

	deliveries := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("redis subscription channel closed")
			}
			var envelope redisEnvelope
			if err := json.Unmarshal([]byte(delivery.Payload), &envelope); err != nil {
				continue
			}
			message := Message{
				ID:         envelope.ID,
				Data:       envelope.Data,
				Attributes: envelope.Attributes,
			}
			_ = handler(ctx, message)
		}
	}
}

// Close closes the underlying Redis client.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

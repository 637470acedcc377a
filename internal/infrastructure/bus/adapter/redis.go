package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/bus/port"
)

// DefaultRedisChannel is the pub/sub channel shared by all API nodes.
const DefaultRedisChannel = "support:push"

type redisEnvelope struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

func encodeEnvelope(topic string, payload []byte) ([]byte, error) {
	if topic == "" {
		return nil, errors.New("bus: topic is required")
	}
	return json.Marshal(redisEnvelope{Topic: topic, Payload: payload})
}

func decodeEnvelope(body string) (string, []byte, error) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return "", nil, err
	}
	if env.Topic == "" {
		return "", nil, errors.New("bus: envelope without topic")
	}
	return env.Topic, env.Payload, nil
}

// RedisBus fans events out through Redis pub/sub.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisBus(client *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, channel: channel, logger: logger}
}

var _ port.Bus = (*RedisBus)(nil)

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	body, err := encodeEnvelope(topic, payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, body).Err()
}

func (b *RedisBus) Run(ctx context.Context, h port.Handler) error {
	const op = "RedisBus.Run"
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.With("op", op).Info("subscribed", slog.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			topic, payload, err := decodeEnvelope(msg.Payload)
			if err != nil {
				b.logger.With("op", op).Warn("dropping malformed event", slog.Any("error", err))
				continue
			}
			h(topic, payload)
		}
	}
}

// Close is a no-op: the client is owned by whoever constructed it.
func (b *RedisBus) Close() error { return nil }

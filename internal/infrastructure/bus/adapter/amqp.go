package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/bus/port"
)

// DefaultAMQPExchange is the topic exchange push events are routed through; the routing key is the topic.
const DefaultAMQPExchange = "support.push"

const maxBackoff = 30 * time.Second

// AMQPBus fans events out through a RabbitMQ topic exchange. Each node consumes from its own
// exclusive auto-delete queue bound with "#".
type AMQPBus struct {
	url      string
	exchange string
	logger   *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

func NewAMQPBus(url, exchange string, logger *slog.Logger) (*AMQPBus, error) {
	if url == "" {
		return nil, errors.New("amqp: AMQP_URL is required")
	}
	if exchange == "" {
		exchange = DefaultAMQPExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &AMQPBus{url: url, exchange: exchange, logger: logger}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

var _ port.Bus = (*AMQPBus)(nil)

func (b *AMQPBus) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp: declare exchange: %w", err)
	}
	b.mu.Lock()
	b.conn, b.pub = conn, ch
	b.mu.Unlock()
	return nil
}

func (b *AMQPBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pub == nil || b.pub.IsClosed() {
		return errors.New("amqp: publisher channel closed")
	}
	return b.pub.PublishWithContext(ctx, b.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

// Run consumes until ctx is done, reconnecting with capped exponential backoff.
func (b *AMQPBus) Run(ctx context.Context, h port.Handler) error {
	const op = "AMQPBus.Run"
	backoff := time.Second
	for {
		err := b.consume(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		b.logger.With("op", op).Error("consumer stopped, reconnecting",
			slog.Any("error", err), slog.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
		if err := b.connect(); err != nil {
			b.logger.With("op", op).Error("reconnect failed", slog.Any("error", err))
			continue
		}
		backoff = time.Second
	}
}

func (b *AMQPBus) consume(ctx context.Context, h port.Handler) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return errors.New("amqp: connection closed")
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "#", b.exchange, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			if err == nil {
				return errors.New("amqp: channel closed")
			}
			return err
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp: delivery channel closed")
			}
			h(d.RoutingKey, d.Body)
		}
	}
}

// nextBackoff doubles d up to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

package adapter

import (
	"context"
	"errors"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/bus/port"
)

type localEvent struct {
	topic   string
	payload []byte
}

// LocalBus delivers events within one process.
type LocalBus struct {
	events chan localEvent
}

func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &LocalBus{events: make(chan localEvent, buffer)}
}

var _ port.Bus = (*LocalBus)(nil)

var ErrBusFull = errors.New("bus: buffer full")

// Publish never blocks; a full buffer drops the event since pollers will catch up.
func (b *LocalBus) Publish(_ context.Context, topic string, payload []byte) error {
	select {
	case b.events <- localEvent{topic: topic, payload: payload}:
		return nil
	default:
		return ErrBusFull
	}
}

func (b *LocalBus) Run(ctx context.Context, h port.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.events:
			h(ev.topic, ev.payload)
		}
	}
}

func (b *LocalBus) Close() error { return nil }

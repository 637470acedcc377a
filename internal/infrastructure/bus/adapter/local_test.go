package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_DeliversInOrder(t *testing.T) {
	bus := NewLocalBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	go func() { _ = bus.Run(ctx, func(topic string, payload []byte) { got <- topic + "=" + string(payload) }) }()

	require.NoError(t, bus.Publish(ctx, "conversation.1", []byte("a")))
	require.NoError(t, bus.Publish(ctx, "employee.notifications", []byte("b")))

	for _, want := range []string{"conversation.1=a", "employee.notifications=b"} {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestLocalBus_FullBufferDrops(t *testing.T) {
	bus := NewLocalBus(1)
	require.NoError(t, bus.Publish(context.Background(), "t", nil))
	assert.ErrorIs(t, bus.Publish(context.Background(), "t", nil), ErrBusFull)
}

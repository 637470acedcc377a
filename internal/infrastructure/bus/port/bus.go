package port

import "context"

// Handler receives an event published to topic by any node.
type Handler func(topic string, payload []byte)

// Bus carries push events between API nodes so every node can forward them to its own
// websocket subscribers.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Run delivers events to h until ctx is done.
	Run(ctx context.Context, h Handler) error
	Close() error
}

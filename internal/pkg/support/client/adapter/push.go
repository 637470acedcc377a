package adapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/realtime"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client"
)

const socketWriteWait = 10 * time.Second

// SocketPush implements client.Push over the support websocket. Topics survive reconnects:
// every new connection resubscribes whatever handlers are registered at that moment.
type SocketPush struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]map[uint64]client.Handler
	nextID   uint64
	conn     *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex
}

func NewSocketPush(wsURL string, creds Credentials, logger *slog.Logger) *SocketPush {
	if logger == nil {
		logger = slog.Default()
	}
	header := http.Header{}
	creds.Apply(header)
	return &SocketPush{
		url:      wsURL,
		header:   header,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger,
		handlers: make(map[string]map[uint64]client.Handler),
	}
}

var _ client.Push = (*SocketPush)(nil)

// Start connects in the background and keeps reconnecting until Close.
func (p *SocketPush) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.run(ctx)
	}()
}

// Close stops reconnecting and closes the socket.
func (p *SocketPush) Close() {
	p.mu.Lock()
	cancel, done, conn := p.cancel, p.done, p.conn
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
}

// Connected reports whether a socket is currently open.
func (p *SocketPush) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

func (p *SocketPush) Subscribe(topic string, h client.Handler) (client.Subscription, error) {
	if topic == "" || h == nil {
		return nil, errors.New("push: topic and handler are required")
	}
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	subs, ok := p.handlers[topic]
	if !ok {
		subs = make(map[uint64]client.Handler)
		p.handlers[topic] = subs
	}
	subs[id] = h
	conn := p.conn
	p.mu.Unlock()

	if !ok && conn != nil {
		if err := p.write(conn, realtime.Frame{Type: realtime.FrameSubscribe, Topic: topic}); err != nil {
			// the read loop notices the broken socket and the reconnect resubscribes
			p.logger.With("op", "SocketPush.Subscribe").Debug("subscribe frame not sent", slog.String("topic", topic), slog.Any("error", err))
		}
	}
	return &socketSubscription{p: p, topic: topic, id: id}, nil
}

type socketSubscription struct {
	p     *SocketPush
	topic string
	id    uint64
	once  sync.Once
}

func (s *socketSubscription) Unsubscribe() {
	s.once.Do(func() { s.p.unsubscribe(s.topic, s.id) })
}

func (p *SocketPush) unsubscribe(topic string, id uint64) {
	p.mu.Lock()
	subs := p.handlers[topic]
	delete(subs, id)
	last := len(subs) == 0
	if last {
		delete(p.handlers, topic)
	}
	conn := p.conn
	p.mu.Unlock()
	if last && conn != nil {
		_ = p.write(conn, realtime.Frame{Type: realtime.FrameUnsubscribe, Topic: topic})
	}
}

func (p *SocketPush) run(ctx context.Context) {
	const op = "SocketPush.run"
	backoff := time.Second
	for {
		connected, err := p.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = time.Second
		}
		p.logger.With("op", op).Warn("push disconnected, reconnecting",
			slog.Any("error", err), slog.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (p *SocketPush) session(ctx context.Context) (bool, error) {
	const op = "SocketPush.session"
	conn, _, err := p.dialer.DialContext(ctx, p.url, p.header)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	p.conn = conn
	topics := make([]string, 0, len(p.handlers))
	for t := range p.handlers {
		topics = append(topics, t)
	}
	p.mu.Unlock()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		p.mu.Lock()
		if p.conn == conn {
			p.conn = nil
		}
		p.mu.Unlock()
		_ = conn.Close()
	}()

	for _, t := range topics {
		if err := p.write(conn, realtime.Frame{Type: realtime.FrameSubscribe, Topic: t}); err != nil {
			return true, err
		}
	}
	for {
		var f realtime.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return true, err
		}
		switch f.Type {
		case realtime.FrameEvent:
			p.dispatch(f.Topic, f.Payload)
		case realtime.FrameError:
			p.logger.With("op", op).Warn("server refused frame",
				slog.String("topic", f.Topic), slog.String("code", f.Code), slog.String("error", f.Error))
		}
	}
}

func (p *SocketPush) dispatch(topic string, payload []byte) {
	p.mu.Lock()
	subs := make([]client.Handler, 0, len(p.handlers[topic]))
	for _, h := range p.handlers[topic] {
		subs = append(subs, h)
	}
	p.mu.Unlock()
	for _, h := range subs {
		h(payload)
	}
}

func (p *SocketPush) write(conn *websocket.Conn, f realtime.Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return conn.WriteJSON(f)
}

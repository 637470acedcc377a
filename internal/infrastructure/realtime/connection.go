package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxInboundFrame = 4096
)

// Frame types exchanged on the push socket.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameEvent       = "event"
	FrameError       = "error"

	FrameConnected    = "connected"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrSlowConsumer     = errors.New("realtime: send buffer exceeded")
)

// Frame is the envelope for both directions: clients send subscribe/unsubscribe frames,
// the server sends event frames carrying the topic's payload verbatim.
type Frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Connection is one push socket. Writes go through a buffered channel drained by a single
// writer goroutine, so Send is safe for concurrent use.
type Connection struct {
	ID      string
	Subject string
	Role    string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func NewConnection(subject, role string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:      uuid.NewString(),
		Subject: subject,
		Role:    role,
		ws:      ws,
		send:    make(chan []byte, 128),
		close:   make(chan struct{}),
	}
}

// Start launches the write loop. Call once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues a raw frame. A full buffer closes the connection; the client's poller covers the gap.
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.close:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.Close(websocket.CloseTryAgainLater, "send buffer full")
		return ErrSlowConsumer
	}
}

// SendFrame marshals and enqueues f.
func (c *Connection) SendFrame(f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.Send(b)
}

// ReadFrames blocks reading client frames and calls fn for each until the socket fails.
// Malformed frames are answered with an error frame and skipped.
func (c *Connection) ReadFrames(fn func(Frame)) error {
	c.ws.SetReadLimit(maxInboundFrame)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			_ = c.SendFrame(Frame{Type: FrameError, Code: "bad_request", Error: "malformed frame"})
			continue
		}
		fn(f)
	}
}

func (c *Connection) Done() <-chan struct{} { return c.close }

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}

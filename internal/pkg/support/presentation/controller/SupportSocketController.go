package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/realtime"
	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// SupportSocketController serves GET /ws. Clients subscribe to topics; events reach them through
// the router, which the push bus feeds. Employees may listen to any topic, customers and guests
// only to their own conversation topics.
type SupportSocketController struct {
	router   *realtime.Router
	statusUC *usecase.GetConversationStatusUseCase
	upgrader websocket.Upgrader
	logger   *slog.Logger
	timeout  time.Duration
}

func NewSupportSocketController(router *realtime.Router, statusUC *usecase.GetConversationStatusUseCase, allowOrigin func(*http.Request) bool, logger *slog.Logger) *SupportSocketController {
	if logger == nil {
		logger = slog.Default()
	}
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &SupportSocketController{
		router:   router,
		statusUC: statusUC,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: allowOrigin},
		logger:   logger,
		timeout:  3 * time.Second,
	}
}

func (ctl *SupportSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "SupportSocketController.Handle"
		actor := middleware.ActorFrom(c)

		ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		conn := realtime.NewConnection(actor.ID, string(actor.Kind), ws)
		ctl.router.Attach(conn)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()
		_ = conn.SendFrame(realtime.Frame{Type: realtime.FrameConnected})

		err = conn.ReadFrames(func(f realtime.Frame) {
			switch f.Type {
			case realtime.FrameSubscribe:
				ctl.subscribe(c.Request.Context(), actor, conn, f.Topic)
			case realtime.FrameUnsubscribe:
				ctl.router.Unsubscribe(f.Topic, conn)
				_ = conn.SendFrame(realtime.Frame{Type: realtime.FrameUnsubscribed, Topic: f.Topic})
			default:
				replyError(conn, f.Topic, "unsupported_type", "unknown frame type")
			}
		})
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
			!errors.Is(err, websocket.ErrCloseSent) {
			ctl.logger.With("op", op).Debug("socket closed", slog.String("session", conn.ID), slog.Any("error", err))
		}
	}
}

func (ctl *SupportSocketController) subscribe(ctx context.Context, actor usecase.Actor, conn *realtime.Connection, topic string) {
	switch {
	case topic == support.EmployeeTopic:
		if !actor.IsEmployee() {
			replyError(conn, topic, CodeForbidden, "employee topic requires an employee")
			return
		}
	default:
		id, ok := support.ConversationIDFromTopic(topic)
		if !ok {
			replyError(conn, topic, CodeInvalid, "unknown topic")
			return
		}
		ctx, cancel := context.WithTimeout(ctx, ctl.timeout)
		defer cancel()
		if _, err := ctl.statusUC.Execute(ctx, usecase.GetConversationStatusInput{Actor: actor, ConversationID: id}); err != nil {
			_, code := statusFor(err)
			replyError(conn, topic, code, "subscription refused")
			return
		}
	}
	if ctl.router.Subscribe(topic, conn) {
		_ = conn.SendFrame(realtime.Frame{Type: realtime.FrameSubscribed, Topic: topic})
	}
}

func replyError(conn *realtime.Connection, topic, code, message string) {
	_ = conn.SendFrame(realtime.Frame{Type: realtime.FrameError, Topic: topic, Code: code, Error: message})
}

package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	cport "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/port"
	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// Publisher carries push events to subscribed clients. The push bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// System messages written on every routing transition.
const (
	textEmployeeJoined  = "An employee joined the conversation"
	textBackToAssistant = "Conversation returned to the assistant"
	textWaitingEmployee = "Waiting for an employee"
)

func statusCacheKey(conversationID string) string { return "support:status:" + conversationID }

// Notifier publishes conversation events and keeps the status cache coherent.
// Publish failures are logged only: clients poll, so a lost push self-heals.
type Notifier struct {
	pub    Publisher
	cache  cport.Cache
	logger *slog.Logger
}

func NewNotifier(pub Publisher, cache cport.Cache, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, cache: cache, logger: logger}
}

// MessageCreated pushes m on its conversation topic and pings employees with the bare id.
func (n *Notifier) MessageCreated(ctx context.Context, m support.Message) {
	if n == nil {
		return
	}
	n.publish(ctx, support.ConversationTopic(m.ConversationID), support.MessageEvent(m))
	n.publish(ctx, support.EmployeeTopic, m.ConversationID)
}

// ConversationCreated tells employee clients a new conversation exists.
func (n *Notifier) ConversationCreated(ctx context.Context, c support.Conversation) {
	if n == nil {
		return
	}
	n.publish(ctx, support.EmployeeTopic, support.Notice{ConversationID: c.ID, Status: c.Status})
}

// StatusChanged invalidates the cached status and broadcasts the transition on both topics.
func (n *Notifier) StatusChanged(ctx context.Context, c support.Conversation) {
	if n == nil {
		return
	}
	if n.cache != nil {
		if _, err := n.cache.Del(ctx, statusCacheKey(c.ID)); err != nil {
			n.logger.With("op", "Notifier.StatusChanged").Warn("status cache invalidation failed",
				slog.String("conversation_id", c.ID), slog.Any("error", err))
		}
	}
	n.publish(ctx, support.ConversationTopic(c.ID), support.StatusEvent(c))
	n.publish(ctx, support.EmployeeTopic, support.Notice{
		ConversationID:     c.ID,
		Status:             c.Status,
		AssignedEmployeeID: c.AssignedEmployeeID,
	})
}

func (n *Notifier) publish(ctx context.Context, topic string, v any) {
	if n.pub == nil {
		return
	}
	const op = "Notifier.publish"
	payload, err := json.Marshal(v)
	if err != nil {
		n.logger.With("op", op).Error("marshal event", slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := n.pub.Publish(ctx, topic, payload); err != nil {
		n.logger.With("op", op).Warn("publish failed", slog.String("topic", topic), slog.Any("error", err))
	}
}

// announceTransition records a SYSTEM message for the transition and broadcasts both the message and the new status.
func announceTransition(ctx context.Context, repo repository.ConversationRepository, n *Notifier, c support.Conversation, text string) {
	n.StatusChanged(ctx, c)

	msg, err := support.NewMessage(support.Message{ConversationID: c.ID, SenderRole: support.RoleSystem, Content: text})
	if err != nil {
		return
	}
	saved, err := repo.SaveMessage(ctx, *msg)
	if err != nil {
		if n != nil {
			n.logger.With("op", "announceTransition").Warn("system message not stored",
				slog.String("conversation_id", c.ID), slog.Any("error", err))
		}
		return
	}
	n.MessageCreated(ctx, saved)
}

func transitionText(s support.Status) string {
	switch s {
	case support.StatusEmp:
		return textEmployeeJoined
	case support.StatusWaitingEmp:
		return textWaitingEmployee
	}
	return textBackToAssistant
}

package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	qport "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/queue/port"
	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// AssistantReplyTaskType is the queue task name for producing an assistant reply.
const AssistantReplyTaskType = "support:assistant_reply"

const historySize = 10

// AssistantReplyTaskPayload is the JSON payload transported via the queue.
type AssistantReplyTaskPayload struct {
	ConversationID string `json:"conversationId"`
	AfterMessageID int64  `json:"afterMessageId"`
}

// Scheduler enqueues assistant replies; it implements usecase.AssistantScheduler.
type Scheduler struct {
	Client qport.Client
	Delay  time.Duration
}

var _ usecase.AssistantScheduler = (*Scheduler)(nil)

func (s *Scheduler) ScheduleReply(ctx context.Context, conversationID string, afterMessageID int64) error {
	payload, err := json.Marshal(AssistantReplyTaskPayload{ConversationID: conversationID, AfterMessageID: afterMessageID})
	if err != nil {
		return err
	}
	_, err = s.Client.Enqueue(ctx, qport.Task{Type: AssistantReplyTaskType, Payload: payload}, qport.EnqueueOption{
		Queue:     "assistant",
		ProcessIn: s.Delay,
		MaxRetry:  3,
		UniqueTTL: time.Minute,
	})
	return err
}

// AssistantReplyHandler runs the assistant for one customer message.
type AssistantReplyHandler struct {
	Repo      repository.ConversationRepository
	Assistant Assistant
	Send      *usecase.SendMessageUseCase
	Escalate  *usecase.EscalateConversationUseCase
	Logger    *slog.Logger
}

// Handle is idempotent: it bails out when the conversation left AI or a newer message
// arrived, since that message schedules its own reply.
func (h *AssistantReplyHandler) Handle(ctx context.Context, t qport.Task) error {
	const op = "AssistantReplyHandler.Handle"
	var p AssistantReplyTaskPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		// malformed payload: do not retry
		h.logger().With("op", op).Error("malformed payload", slog.Any("error", err))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := h.Repo.GetConversation(ctx, p.ConversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}
	if c.Status != support.StatusAI {
		return nil
	}

	history, _, err := h.Repo.GetMessagesPage(ctx, c.ID, 0, historySize)
	if err != nil {
		return fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}
	for _, m := range history {
		if m.SenderRole == support.RoleCustomer && m.ID > p.AfterMessageID {
			return nil
		}
		if m.SenderRole == support.RoleAI && m.ID > p.AfterMessageID {
			// already answered by an earlier attempt
			return nil
		}
	}

	reply, err := h.Assistant.Reply(ctx, c, history)
	if err != nil {
		return err
	}
	if reply.Content != "" {
		_, err := h.Send.Execute(ctx, usecase.SendMessageInput{
			Actor:          usecase.System(),
			ConversationID: c.ID,
			Content:        reply.Content,
			AsAssistant:    true,
		})
		if errors.Is(err, support.ErrWriterNotAllowed) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	if reply.Escalate {
		if _, err := h.Escalate.Execute(ctx, usecase.EscalateConversationInput{Actor: usecase.System(), ConversationID: c.ID}); err != nil &&
			!errors.Is(err, support.ErrInvalidTransition) {
			return err
		}
	}
	return nil
}

func (h *AssistantReplyHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// RegisterAssistantReplyTask binds the handler to the provided server.
func RegisterAssistantReplyTask(srv qport.Server, h *AssistantReplyHandler) {
	srv.Register(AssistantReplyTaskType, h.Handle)
}

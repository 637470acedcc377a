package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// SendMessageInput carries one new message. The sender role is derived from Actor
// unless AsAssistant is set, which only background tasks may do.
type SendMessageInput struct {
	Actor          Actor
	ConversationID string
	Content        string
	Payload        json.RawMessage
	AsAssistant    bool
}

// AssistantScheduler queues an assistant reply after a customer message in an AI conversation.
type AssistantScheduler interface {
	ScheduleReply(ctx context.Context, conversationID string, afterMessageID int64) error
}

// SendMessageUseCase authorizes the writer against the conversation's routing state,
// stores the message and fans it out.
type SendMessageUseCase struct {
	Repo      repository.ConversationRepository
	Events    *Notifier
	Assistant AssistantScheduler
	Logger    *slog.Logger
}

func NewSendMessageUseCase(repo repository.ConversationRepository, events *Notifier, assistant AssistantScheduler, logger *slog.Logger) *SendMessageUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendMessageUseCase{Repo: repo, Events: events, Assistant: assistant, Logger: logger}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (support.Message, error) {
	const op = "SendMessageUseCase.Execute"
	if in.ConversationID == "" {
		return support.Message{}, ErrInvalidInput
	}

	c, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return support.Message{}, repoErr(err)
	}
	if !in.Actor.canAccess(c) {
		return support.Message{}, ErrNotAuthorized
	}

	role := in.Actor.role()
	if in.AsAssistant {
		if in.Actor.Kind != ActorSystem {
			return support.Message{}, ErrNotAuthorized
		}
		role = support.RoleAI
	}
	if role == support.RoleSystem {
		// transition notes are written by announceTransition, never through this path
		return support.Message{}, ErrNotAuthorized
	}

	draft := support.Message{
		ConversationID: c.ID,
		SenderRole:     role,
		Content:        in.Content,
		Payload:        in.Payload,
	}
	if role == support.RoleEmployee {
		emp := in.Actor.ID
		draft.EmployeeID = &emp
	}
	msg, err := support.NewMessage(draft)
	if err != nil {
		return support.Message{}, errors.Join(ErrInvalidInput, err)
	}
	if !support.MayWrite(c, role, in.Actor.ID) {
		return support.Message{}, support.ErrWriterNotAllowed
	}

	saved, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		if errors.Is(err, repository.ErrWriteRejected) {
			// state changed between the read and the guarded insert
			return support.Message{}, support.ErrWriterNotAllowed
		}
		return support.Message{}, repoErr(err)
	}
	uc.Events.MessageCreated(ctx, saved)

	if role == support.RoleCustomer && c.Status == support.StatusAI && uc.Assistant != nil {
		if err := uc.Assistant.ScheduleReply(ctx, c.ID, saved.ID); err != nil {
			uc.Logger.With("op", op).Warn("assistant reply not scheduled",
				slog.String("conversation_id", c.ID), slog.Any("error", err))
		}
	}
	return saved, nil
}

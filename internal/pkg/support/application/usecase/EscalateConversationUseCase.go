package usecase

import (
	"context"
	"errors"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

type EscalateConversationInput struct {
	Actor          Actor
	ConversationID string
}

// EscalateConversationUseCase queues an AI conversation for a human. Escalating a conversation
// that is already waiting returns it unchanged; one owned by an employee is a transition error.
type EscalateConversationUseCase struct {
	Repo   repository.ConversationRepository
	Events *Notifier
}

func NewEscalateConversationUseCase(repo repository.ConversationRepository, events *Notifier) *EscalateConversationUseCase {
	return &EscalateConversationUseCase{Repo: repo, Events: events}
}

func (uc *EscalateConversationUseCase) Execute(ctx context.Context, in EscalateConversationInput) (support.Conversation, error) {
	if in.ConversationID == "" {
		return support.Conversation{}, ErrInvalidInput
	}
	c, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return support.Conversation{}, repoErr(err)
	}
	if !in.Actor.canAccess(c) {
		return support.Conversation{}, ErrNotAuthorized
	}

	escalated, err := uc.Repo.EscalateConversation(ctx, in.ConversationID)
	if errors.Is(err, repository.ErrConflict) {
		current, getErr := uc.Repo.GetConversation(ctx, in.ConversationID)
		if getErr != nil {
			return support.Conversation{}, repoErr(getErr)
		}
		if current.Status == support.StatusWaitingEmp {
			return current, nil
		}
		return support.Conversation{}, support.ErrInvalidTransition
	}
	if err != nil {
		return support.Conversation{}, repoErr(err)
	}
	announceTransition(ctx, uc.Repo, uc.Events, escalated, transitionText(escalated.Status))
	return escalated, nil
}

package usecase

import (
	"context"
	"errors"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// ReleaseConversationInput hands a conversation back. An empty To means AI.
type ReleaseConversationInput struct {
	Actor          Actor
	ConversationID string
	To             support.Status
}

// ReleaseConversationUseCase is the only way out of EMP and only the owner may use it.
type ReleaseConversationUseCase struct {
	Repo   repository.ConversationRepository
	Events *Notifier
}

func NewReleaseConversationUseCase(repo repository.ConversationRepository, events *Notifier) *ReleaseConversationUseCase {
	return &ReleaseConversationUseCase{Repo: repo, Events: events}
}

func (uc *ReleaseConversationUseCase) Execute(ctx context.Context, in ReleaseConversationInput) (support.Conversation, error) {
	if !in.Actor.IsEmployee() {
		return support.Conversation{}, ErrNotAuthorized
	}
	if in.ConversationID == "" {
		return support.Conversation{}, ErrInvalidInput
	}
	to, err := support.ReleaseTarget(in.To)
	if err != nil {
		return support.Conversation{}, errors.Join(ErrInvalidInput, err)
	}

	released, err := uc.Repo.ReleaseConversation(ctx, in.ConversationID, in.Actor.ID, to)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return support.Conversation{}, ErrNotOwner
		}
		return support.Conversation{}, repoErr(err)
	}
	announceTransition(ctx, uc.Repo, uc.Events, released, transitionText(released.Status))
	return released, nil
}

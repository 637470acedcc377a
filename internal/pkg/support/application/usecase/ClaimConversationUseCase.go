package usecase

import (
	"context"
	"errors"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

type ClaimConversationInput struct {
	Actor          Actor
	ConversationID string
}

// ClaimConversationUseCase hands a conversation to the calling employee. The repository applies
// the ownership check and the write in one statement, so of two concurrent claims exactly one wins
// and the other gets ErrClaimConflict. Claiming a conversation one already owns is a no-op.
type ClaimConversationUseCase struct {
	Repo   repository.ConversationRepository
	Events *Notifier
}

func NewClaimConversationUseCase(repo repository.ConversationRepository, events *Notifier) *ClaimConversationUseCase {
	return &ClaimConversationUseCase{Repo: repo, Events: events}
}

func (uc *ClaimConversationUseCase) Execute(ctx context.Context, in ClaimConversationInput) (support.Conversation, error) {
	if !in.Actor.IsEmployee() {
		return support.Conversation{}, ErrNotAuthorized
	}
	if in.ConversationID == "" {
		return support.Conversation{}, ErrInvalidInput
	}

	before, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return support.Conversation{}, repoErr(err)
	}
	if before.AssignedTo(in.Actor.ID) {
		return before, nil
	}

	claimed, err := uc.Repo.ClaimConversation(ctx, in.ConversationID, in.Actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return support.Conversation{}, ErrClaimConflict
		}
		return support.Conversation{}, repoErr(err)
	}
	announceTransition(ctx, uc.Repo, uc.Events, claimed, transitionText(claimed.Status))
	return claimed, nil
}

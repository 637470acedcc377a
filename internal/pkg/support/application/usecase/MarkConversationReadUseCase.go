package usecase

import (
	"context"

	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

type MarkConversationReadInput struct {
	Actor          Actor
	ConversationID string
}

// MarkConversationReadUseCase resets the unread counter employees see in the directory.
type MarkConversationReadUseCase struct {
	Repo repository.ConversationRepository
}

func NewMarkConversationReadUseCase(repo repository.ConversationRepository) *MarkConversationReadUseCase {
	return &MarkConversationReadUseCase{Repo: repo}
}

func (uc *MarkConversationReadUseCase) Execute(ctx context.Context, in MarkConversationReadInput) error {
	if !in.Actor.IsEmployee() {
		return ErrNotAuthorized
	}
	if in.ConversationID == "" {
		return ErrInvalidInput
	}
	return repoErr(uc.Repo.MarkRead(ctx, in.ConversationID))
}

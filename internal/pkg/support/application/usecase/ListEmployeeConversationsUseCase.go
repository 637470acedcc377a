package usecase

import (
	"context"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

type ListEmployeeConversationsInput struct {
	Actor Actor
}

// ListEmployeeConversationsUseCase returns every conversation an employee console shows,
// most recent activity first. Queue and mine views are derived client-side.
type ListEmployeeConversationsUseCase struct {
	Repo repository.ConversationRepository
}

func NewListEmployeeConversationsUseCase(repo repository.ConversationRepository) *ListEmployeeConversationsUseCase {
	return &ListEmployeeConversationsUseCase{Repo: repo}
}

func (uc *ListEmployeeConversationsUseCase) Execute(ctx context.Context, in ListEmployeeConversationsInput) ([]support.Conversation, error) {
	if !in.Actor.IsEmployee() {
		return nil, ErrNotAuthorized
	}
	convs, err := uc.Repo.ListConversations(ctx)
	if err != nil {
		return nil, repoErr(err)
	}
	if convs == nil {
		convs = []support.Conversation{}
	}
	return convs, nil
}

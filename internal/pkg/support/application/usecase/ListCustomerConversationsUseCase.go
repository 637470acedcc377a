package usecase

import (
	"context"

	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

type ListCustomerConversationsInput struct {
	Actor      Actor
	CustomerID string
}

// ListCustomerConversationsUseCase returns a customer's conversation ids, most recent first.
type ListCustomerConversationsUseCase struct {
	Repo repository.ConversationRepository
}

func NewListCustomerConversationsUseCase(repo repository.ConversationRepository) *ListCustomerConversationsUseCase {
	return &ListCustomerConversationsUseCase{Repo: repo}
}

func (uc *ListCustomerConversationsUseCase) Execute(ctx context.Context, in ListCustomerConversationsInput) ([]string, error) {
	if in.CustomerID == "" {
		return nil, ErrInvalidInput
	}
	if !in.Actor.privileged() && !(in.Actor.Kind == ActorCustomer && in.Actor.ID == in.CustomerID) {
		return nil, ErrNotAuthorized
	}
	ids, err := uc.Repo.ListCustomerConversationIDs(ctx, in.CustomerID)
	if err != nil {
		return nil, repoErr(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// InitConversationInput starts a conversation. An empty CustomerID opens a guest conversation.
type InitConversationInput struct {
	Actor         Actor
	CustomerName  string
	CustomerPhone string
}

// InitConversationUseCase creates a conversation in status AI. A guest conversation's id
// doubles as the guest token the widget persists.
type InitConversationUseCase struct {
	Repo   repository.ConversationRepository
	Events *Notifier
}

func NewInitConversationUseCase(repo repository.ConversationRepository, events *Notifier) *InitConversationUseCase {
	return &InitConversationUseCase{Repo: repo, Events: events}
}

func (uc *InitConversationUseCase) Execute(ctx context.Context, in InitConversationInput) (support.Conversation, error) {
	id := uuid.NewString()
	c := support.Conversation{
		ID:            id,
		Status:        support.StatusAI,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
	}
	switch in.Actor.Kind {
	case ActorGuest:
		c.Customer.GuestToken = id
	case ActorCustomer:
		if in.Actor.ID == "" {
			return support.Conversation{}, ErrInvalidInput
		}
		c.Customer.CustomerID = in.Actor.ID
	default:
		return support.Conversation{}, ErrNotAuthorized
	}
	if err := c.Validate(); err != nil {
		return support.Conversation{}, err
	}

	created, err := uc.Repo.CreateConversation(ctx, c)
	if err != nil {
		return support.Conversation{}, repoErr(err)
	}
	uc.Events.ConversationCreated(ctx, created)
	return created, nil
}

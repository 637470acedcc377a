package usecase

import (
	"context"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type GetMessagesInput struct {
	Actor          Actor
	ConversationID string
	BeforeID       int64 // 0 = newest page
	Size           int
}

// MessagePage is newest first; Last is true when no older messages remain.
type MessagePage struct {
	Content []support.Message `json:"content"`
	Last    bool              `json:"last"`
}

type GetMessagesUseCase struct {
	Repo repository.ConversationRepository
}

func NewGetMessagesUseCase(repo repository.ConversationRepository) *GetMessagesUseCase {
	return &GetMessagesUseCase{Repo: repo}
}

func (uc *GetMessagesUseCase) Execute(ctx context.Context, in GetMessagesInput) (MessagePage, error) {
	if in.ConversationID == "" || in.BeforeID < 0 {
		return MessagePage{}, ErrInvalidInput
	}
	size := in.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	c, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return MessagePage{}, repoErr(err)
	}
	if !in.Actor.canAccess(c) {
		return MessagePage{}, ErrNotAuthorized
	}

	msgs, last, err := uc.Repo.GetMessagesPage(ctx, in.ConversationID, in.BeforeID, size)
	if err != nil {
		return MessagePage{}, repoErr(err)
	}
	if msgs == nil {
		msgs = []support.Message{}
	}
	return MessagePage{Content: msgs, Last: last}, nil
}

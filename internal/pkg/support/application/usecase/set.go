package usecase

import (
	"log/slog"
	"time"

	cport "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/port"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// Set wires every support use case over one repository, cache and notifier.
type Set struct {
	Init          *InitConversationUseCase
	ListCustomer  *ListCustomerConversationsUseCase
	Status        *GetConversationStatusUseCase
	Messages      *GetMessagesUseCase
	Send          *SendMessageUseCase
	ListEmployee  *ListEmployeeConversationsUseCase
	Claim         *ClaimConversationUseCase
	Release       *ReleaseConversationUseCase
	Escalate      *EscalateConversationUseCase
	MarkRead      *MarkConversationReadUseCase
	Notifications *Notifier
}

// NewSet builds the use cases. assistant may be nil to disable assistant replies.
func NewSet(repo repository.ConversationRepository, cache cport.Cache, pub Publisher, assistant AssistantScheduler, statusTTL time.Duration, logger *slog.Logger) *Set {
	events := NewNotifier(pub, cache, logger)
	return &Set{
		Init:          NewInitConversationUseCase(repo, events),
		ListCustomer:  NewListCustomerConversationsUseCase(repo),
		Status:        NewGetConversationStatusUseCase(repo, cache, statusTTL, logger),
		Messages:      NewGetMessagesUseCase(repo),
		Send:          NewSendMessageUseCase(repo, events, assistant, logger),
		ListEmployee:  NewListEmployeeConversationsUseCase(repo),
		Claim:         NewClaimConversationUseCase(repo, events),
		Release:       NewReleaseConversationUseCase(repo, events),
		Escalate:      NewEscalateConversationUseCase(repo, events),
		MarkRead:      NewMarkConversationReadUseCase(repo),
		Notifications: events,
	}
}

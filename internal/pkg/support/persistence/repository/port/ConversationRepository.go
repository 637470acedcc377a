package repository

import (
	"context"
	"errors"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

var (
	// ErrNotFound is returned when the conversation does not exist.
	ErrNotFound = errors.New("support repository: not found")
	// ErrConflict is returned when a conditional status update matched no row
	// because the conversation is in a state that forbids it.
	ErrConflict = errors.New("support repository: conflicting conversation state")
	// ErrWriteRejected is returned when the sender may not write in the conversation's current state.
	ErrWriteRejected = errors.New("support repository: write rejected")
)

// ConversationRepository persists conversations and their messages. The store is authoritative:
// ClaimConversation, ReleaseConversation, EscalateConversation and SaveMessage must apply their
// state checks atomically with the write.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, c support.Conversation) (support.Conversation, error)
	GetConversation(ctx context.Context, id string) (support.Conversation, error)
	// ListCustomerConversationIDs returns ids most-recent-first.
	ListCustomerConversationIDs(ctx context.Context, customerID string) ([]string, error)
	ListConversations(ctx context.Context) ([]support.Conversation, error)

	// SaveMessage stores m, assigns its id and timestamp and updates the conversation's last message fields.
	SaveMessage(ctx context.Context, m support.Message) (support.Message, error)
	// GetMessagesPage returns up to size messages older than beforeID (0 = newest), newest first,
	// and whether no older messages remain.
	GetMessagesPage(ctx context.Context, conversationID string, beforeID int64, size int) ([]support.Message, bool, error)

	// ClaimConversation succeeds unless another employee already owns the conversation.
	ClaimConversation(ctx context.Context, id string, employeeID string) (support.Conversation, error)
	// ReleaseConversation succeeds only for the owning employee.
	ReleaseConversation(ctx context.Context, id string, employeeID string, to support.Status) (support.Conversation, error)
	// EscalateConversation moves an AI conversation to WAITING_EMP.
	EscalateConversation(ctx context.Context, id string) (support.Conversation, error)
	MarkRead(ctx context.Context, id string) error
}

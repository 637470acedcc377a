package client

import (
	"context"
	"errors"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// ErrConflict is returned by API implementations when the server answers 409.
var ErrConflict = errors.New("client: conflict")

// ConversationStatus is the routing state reported by the server.
type ConversationStatus struct {
	Status             support.Status `json:"status"`
	AssignedEmployeeID *string        `json:"assignedEmployeeId"`
}

func StatusOf(c support.Conversation) ConversationStatus {
	return ConversationStatus{Status: c.Status, AssignedEmployeeID: c.AssignedEmployeeID}
}

// Equal compares status and assignee.
func (s ConversationStatus) Equal(o ConversationStatus) bool {
	if s.Status != o.Status {
		return false
	}
	return assignee(s) == assignee(o)
}

// OwnedBy reports whether employeeID currently handles the conversation.
func (s ConversationStatus) OwnedBy(employeeID string) bool {
	return s.Status == support.StatusEmp && employeeID != "" && assignee(s) == employeeID
}

func assignee(s ConversationStatus) string {
	if s.AssignedEmployeeID == nil {
		return ""
	}
	return *s.AssignedEmployeeID
}

// Page is one page of messages, newest first. Last is true when nothing older exists.
type Page struct {
	Content []support.Message `json:"content"`
	Last    bool              `json:"last"`
}

// SendRequest is a message to transmit. The server may derive role and employee from credentials.
type SendRequest struct {
	ConversationID string
	SenderRole     support.SenderRole
	EmployeeID     *string
	Content        string
}

// API is the remote support service.
type API interface {
	InitConversation(ctx context.Context) (string, error)
	// GetConversations returns ids most-recent-first.
	GetConversations(ctx context.Context, customerID string) ([]string, error)
	FetchConversationStatus(ctx context.Context, conversationID string) (ConversationStatus, error)
	FetchMessagesPaged(ctx context.Context, conversationID string, beforeID int64, size int) (Page, error)
	SendMessage(ctx context.Context, req SendRequest) (support.Message, error)
	FetchEmployeeConversations(ctx context.Context) ([]support.Conversation, error)
	// ClaimConversation returns ErrConflict when another employee owns the conversation.
	ClaimConversation(ctx context.Context, conversationID, employeeID string) error
	ReleaseConversation(ctx context.Context, conversationID string, to support.Status) error
	EscalateConversation(ctx context.Context, conversationID string) error
	MarkConversationRead(ctx context.Context, conversationID string) error
}

// Handler receives a raw payload published on a topic.
type Handler func(payload []byte)

type Subscription interface {
	Unsubscribe()
}

// Push is the live event channel. Delivery is best effort; pollers cover any gap.
type Push interface {
	Subscribe(topic string, h Handler) (Subscription, error)
}

// TokenStore persists the guest token between sessions. Load returns "" when none is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

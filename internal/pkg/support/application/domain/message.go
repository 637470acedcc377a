package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SenderRole tells who wrote a message.
type SenderRole string

const (
	RoleCustomer SenderRole = "CUSTOMER"
	RoleEmployee SenderRole = "EMP"
	RoleAI       SenderRole = "AI"
	RoleSystem   SenderRole = "SYSTEM"
)

// MaxContentLength is the ceiling, in runes, for a single message body.
const MaxContentLength = 1000

const previewLength = 80

var (
	ErrEmptyMessage     = errors.New("support: empty message")
	ErrMessageTooLong   = errors.New("support: message exceeds maximum length")
	ErrWriterNotAllowed = errors.New("support: sender may not write to the conversation in its current state")
	ErrInvalidRole      = errors.New("support: invalid sender role")
)

// Valid reports whether r is a known sender role.
func (r SenderRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleAI, RoleSystem:
		return true
	}
	return false
}

// Message is an immutable entry in a conversation. IDs grow monotonically within a conversation.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID string          `json:"conversationId"`
	SenderRole     SenderRole      `json:"senderRole"`
	EmployeeID     *string         `json:"employeeId,omitempty"`
	Content        string          `json:"content"`
	Payload        json.RawMessage `json:"payload,omitempty"` // structured attachment, e.g. suggested items
	CreatedAt      time.Time       `json:"timestamp"`
}

// HasPayload reports whether renderers need to special-case a structured attachment.
func (m Message) HasPayload() bool {
	return len(m.Payload) > 0 && string(m.Payload) != "null"
}

// NormalizeContent trims the body and enforces the empty and length rules.
func NormalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", fmt.Errorf("%w: %d runes", ErrMessageTooLong, MaxContentLength)
	}
	return trimmed, nil
}

// NewMessage validates m and fills defaults. Structured payloads may carry an empty body.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" {
		return nil, errors.New("support: conversation_id is required")
	}
	if !m.SenderRole.Valid() {
		return nil, ErrInvalidRole
	}
	if m.SenderRole == RoleEmployee && (m.EmployeeID == nil || *m.EmployeeID == "") {
		return nil, errors.New("support: employee messages require employee_id")
	}
	content, err := NormalizeContent(m.Content)
	if err != nil && !(errors.Is(err, ErrEmptyMessage) && m.HasPayload()) {
		return nil, err
	}
	m.Content = content
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return &m, nil
}

// Preview shortens the body for directory display.
func (m Message) Preview() string {
	if utf8.RuneCountInString(m.Content) <= previewLength {
		return m.Content
	}
	r := []rune(m.Content)
	return string(r[:previewLength-1]) + "…"
}

// MayWrite reports whether role may add a message to c right now.
// Customers always may; the assistant only while AI; an employee only while it owns the conversation.
func MayWrite(c Conversation, role SenderRole, employeeID string) bool {
	switch role {
	case RoleCustomer, RoleSystem:
		return true
	case RoleAI:
		return c.Status == StatusAI
	case RoleEmployee:
		return c.AssignedTo(employeeID)
	}
	return false
}

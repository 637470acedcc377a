package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// EmployeeTopic is the single shared channel every employee client listens on.
const EmployeeTopic = "employee.notifications"

const conversationTopicPrefix = "conversation."

// ConversationTopic names the per-conversation push topic.
func ConversationTopic(conversationID string) string {
	return conversationTopicPrefix + conversationID
}

// EventType discriminates payloads on a conversation topic.
type EventType string

const (
	EventMessage EventType = "message"
	EventStatus  EventType = "status"
)

// Event is published on a conversation topic.
type Event struct {
	Type               EventType `json:"type"`
	ConversationID     string    `json:"conversationId"`
	Message            *Message  `json:"message,omitempty"`
	Status             Status    `json:"status,omitempty"`
	AssignedEmployeeID *string   `json:"assignedEmployeeId,omitempty"`
}

// MessageEvent wraps a new message for the conversation topic.
func MessageEvent(m Message) Event {
	return Event{Type: EventMessage, ConversationID: m.ConversationID, Message: &m}
}

// StatusEvent describes a routing transition for the conversation topic.
func StatusEvent(c Conversation) Event {
	return Event{Type: EventStatus, ConversationID: c.ID, Status: c.Status, AssignedEmployeeID: c.AssignedEmployeeID}
}

// Notice is carried on EmployeeTopic. Status is empty when the publisher only sent a bare id.
type Notice struct {
	ConversationID     string  `json:"conversationId"`
	Status             Status  `json:"status,omitempty"`
	AssignedEmployeeID *string `json:"assignedEmployeeId,omitempty"`
}

var ErrInvalidNotice = errors.New("support: invalid employee notification")

// ParseNotice accepts a bare conversation id (raw text, JSON string or JSON number)
// or a {conversationId, status} envelope.
func ParseNotice(payload []byte) (Notice, error) {
	raw := bytes.TrimSpace(payload)
	if len(raw) == 0 {
		return Notice{}, ErrInvalidNotice
	}
	switch raw[0] {
	case '{':
		var n Notice
		if err := json.Unmarshal(raw, &n); err != nil || n.ConversationID == "" {
			return Notice{}, ErrInvalidNotice
		}
		if n.Status != "" && !n.Status.Valid() {
			return Notice{}, ErrInvalidNotice
		}
		return n, nil
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || strings.TrimSpace(id) == "" {
			return Notice{}, ErrInvalidNotice
		}
		return Notice{ConversationID: strings.TrimSpace(id)}, nil
	}
	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return Notice{ConversationID: strconv.FormatInt(n, 10)}, nil
	}
	return Notice{ConversationID: string(raw)}, nil
}

// ConversationIDFromTopic reverses ConversationTopic.
func ConversationIDFromTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, conversationTopicPrefix)
	return id, ok && id != ""
}

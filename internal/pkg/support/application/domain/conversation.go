package support

import (
	"errors"
	"time"
)

var (
	ErrOwnershipMismatch = errors.New("support: assigned employee must be set if and only if status is EMP")
	ErrCustomerRef       = errors.New("support: conversation must reference exactly one of guest token or customer id")
)

// CustomerRef identifies who the conversation belongs to: an anonymous guest or an authenticated customer, never both.
type CustomerRef struct {
	GuestToken string `json:"guestToken,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
}

// IsGuest reports whether the conversation was opened by an anonymous guest.
func (r CustomerRef) IsGuest() bool { return r.GuestToken != "" }

func (r CustomerRef) Validate() error {
	if (r.GuestToken == "") == (r.CustomerID == "") {
		return ErrCustomerRef
	}
	return nil
}

// Conversation is a single customer's support thread.
// LastMessageAt and LastMessagePreview are denormalized for directory display.
type Conversation struct {
	ID                 string      `json:"id"`
	Status             Status      `json:"status"`
	AssignedEmployeeID *string     `json:"assignedEmployeeId,omitempty"`
	Customer           CustomerRef `json:"customer"`
	CustomerName       string      `json:"customerName,omitempty"`
	CustomerPhone      string      `json:"customerPhone,omitempty"`
	LastMessageAt      *time.Time  `json:"lastMessageAt,omitempty"`
	LastMessagePreview string      `json:"lastMessagePreview,omitempty"`
	UnreadCount        int         `json:"unreadCount"`
	CreatedAt          time.Time   `json:"createdAt"`
}

// Validate enforces assignedEmployeeId != nil <=> status == EMP and the customer reference rule.
func (c Conversation) Validate() error {
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	if (c.AssignedEmployeeID != nil) != (c.Status == StatusEmp) {
		return ErrOwnershipMismatch
	}
	return c.Customer.Validate()
}

// AssignedTo reports whether employeeID currently owns the conversation.
func (c Conversation) AssignedTo(employeeID string) bool {
	return c.Status == StatusEmp && c.AssignedEmployeeID != nil && *c.AssignedEmployeeID == employeeID
}

// Assignee returns the owning employee id, or "" when nobody owns the conversation.
func (c Conversation) Assignee() string {
	if c.AssignedEmployeeID == nil {
		return ""
	}
	return *c.AssignedEmployeeID
}

// WithOwner returns a copy routed to status. The assignee is kept only for EMP.
func (c Conversation) WithOwner(status Status, employeeID string) Conversation {
	c.Status = status
	c.AssignedEmployeeID = nil
	if status == StatusEmp && employeeID != "" {
		id := employeeID
		c.AssignedEmployeeID = &id
	}
	return c
}

// LastActivity is the timestamp directory views sort and group by.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

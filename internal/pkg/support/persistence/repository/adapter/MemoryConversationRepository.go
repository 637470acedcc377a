package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// MemoryConversationRepository keeps conversations in process. It backs local runs without
// DB_URL and the use case tests; every conditional update runs under one lock.
type MemoryConversationRepository struct {
	mu            sync.Mutex
	conversations map[string]support.Conversation
	messages      map[string][]support.Message
	nextID        int64
	now           func() time.Time
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[string]support.Conversation),
		messages:      make(map[string][]support.Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.ConversationRepository = (*MemoryConversationRepository)(nil)

func (r *MemoryConversationRepository) CreateConversation(_ context.Context, c support.Conversation) (support.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	r.conversations[c.ID] = c
	return c, nil
}

func (r *MemoryConversationRepository) GetConversation(_ context.Context, id string) (support.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return support.Conversation{}, repository.ErrNotFound
	}
	return c, nil
}

func (r *MemoryConversationRepository) ListCustomerConversationIDs(_ context.Context, customerID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var convs []support.Conversation
	for _, c := range r.conversations {
		if c.Customer.CustomerID == customerID {
			convs = append(convs, c)
		}
	}
	sortRecentFirst(convs)
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r *MemoryConversationRepository) ListConversations(_ context.Context) ([]support.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	convs := make([]support.Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		convs = append(convs, c)
	}
	sortRecentFirst(convs)
	return convs, nil
}

func (r *MemoryConversationRepository) SaveMessage(_ context.Context, m support.Message) (support.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[m.ConversationID]
	if !ok {
		return support.Message{}, repository.ErrNotFound
	}
	employeeID := ""
	if m.EmployeeID != nil {
		employeeID = *m.EmployeeID
	}
	if !support.MayWrite(c, m.SenderRole, employeeID) {
		return support.Message{}, repository.ErrWriteRejected
	}
	r.nextID++
	m.ID = r.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)

	at := m.CreatedAt
	c.LastMessageAt = &at
	c.LastMessagePreview = m.Preview()
	if m.SenderRole == support.RoleCustomer {
		c.UnreadCount++
	}
	r.conversations[c.ID] = c
	return m, nil
}

func (r *MemoryConversationRepository) GetMessagesPage(_ context.Context, conversationID string, beforeID int64, size int) ([]support.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if size <= 0 {
		size = 20
	}
	all := r.messages[conversationID]
	page := make([]support.Message, 0, size)
	for i := len(all) - 1; i >= 0; i-- {
		if beforeID > 0 && all[i].ID >= beforeID {
			continue
		}
		if len(page) == size {
			return page, false, nil
		}
		page = append(page, all[i])
	}
	return page, true, nil
}

func (r *MemoryConversationRepository) ClaimConversation(_ context.Context, id string, employeeID string) (support.Conversation, error) {
	return r.transition(id, func(c support.Conversation) (support.Conversation, bool) {
		if c.Status == support.StatusEmp && !c.AssignedTo(employeeID) {
			return c, false
		}
		return c.WithOwner(support.StatusEmp, employeeID), true
	})
}

func (r *MemoryConversationRepository) ReleaseConversation(_ context.Context, id string, employeeID string, to support.Status) (support.Conversation, error) {
	return r.transition(id, func(c support.Conversation) (support.Conversation, bool) {
		if !c.AssignedTo(employeeID) {
			return c, false
		}
		return c.WithOwner(to, ""), true
	})
}

func (r *MemoryConversationRepository) EscalateConversation(_ context.Context, id string) (support.Conversation, error) {
	return r.transition(id, func(c support.Conversation) (support.Conversation, bool) {
		if c.Status != support.StatusAI {
			return c, false
		}
		return c.WithOwner(support.StatusWaitingEmp, ""), true
	})
}

func (r *MemoryConversationRepository) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.UnreadCount = 0
	r.conversations[id] = c
	return nil
}

func (r *MemoryConversationRepository) transition(id string, apply func(support.Conversation) (support.Conversation, bool)) (support.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return support.Conversation{}, repository.ErrNotFound
	}
	next, ok := apply(c)
	if !ok {
		return support.Conversation{}, repository.ErrConflict
	}
	r.conversations[id] = next
	return next, nil
}

func sortRecentFirst(convs []support.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastActivity().After(convs[j].LastActivity())
	})
}

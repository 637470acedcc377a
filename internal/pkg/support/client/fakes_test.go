package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testOptions(clock *fakeClock) Options {
	return Options{
		PollInterval: time.Hour,
		Now:          clock.Now,
		Logger:       discardLogger(),
	}
}

// fakeAPI is an in-process support server with hooks for failure injection.
type fakeAPI struct {
	mu            sync.Mutex
	clock         *fakeClock
	conversations map[string]support.Conversation
	messages      map[string][]support.Message
	customers     map[string][]string
	nextMsg       int64
	nextConv      int

	initCalls  int
	sendCalls  int
	fetchCalls []string

	initErr   error
	fetchErr  error
	sendErr   error
	listErr   error
	claimHook func(id, employeeID string) error
	sendHook  func(req SendRequest, saved support.Message)
	// listHook runs after the employee list snapshot is taken
	listHook  func()
}

func newFakeAPI(clock *fakeClock) *fakeAPI {
	return &fakeAPI{
		clock:         clock,
		conversations: make(map[string]support.Conversation),
		messages:      make(map[string][]support.Message),
		customers:     make(map[string][]string),
	}
}

func (f *fakeAPI) addConversation(c support.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.Status == "" {
		c.Status = support.StatusAI
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = f.clock.Now()
	}
	f.conversations[c.ID] = c
}

// addMessage stores a message as if another client had sent it.
func (f *fakeAPI) addMessage(convID string, role support.SenderRole, content string) support.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(convID, role, nil, content)
}

func (f *fakeAPI) saveLocked(convID string, role support.SenderRole, emp *string, content string) support.Message {
	f.nextMsg++
	m := support.Message{ID: f.nextMsg, ConversationID: convID, SenderRole: role, EmployeeID: emp, Content: content, CreatedAt: f.clock.Now()}
	f.messages[convID] = append(f.messages[convID], m)
	return m
}

func (f *fakeAPI) conversation(id string) support.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations[id]
}

func (f *fakeAPI) InitConversation(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return "", f.initErr
	}
	f.nextConv++
	id := fmt.Sprintf("conv-%d", f.nextConv)
	f.conversations[id] = support.Conversation{ID: id, Status: support.StatusAI, CreatedAt: f.clock.Now()}
	return id, nil
}

func (f *fakeAPI) GetConversations(_ context.Context, customerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.customers[customerID]...), nil
}

func (f *fakeAPI) FetchConversationStatus(_ context.Context, id string) (ConversationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return ConversationStatus{}, errors.New("not found")
	}
	return StatusOf(c), nil
}

func (f *fakeAPI) FetchMessagesPaged(_ context.Context, id string, beforeID int64, size int) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls = append(f.fetchCalls, id)
	if f.fetchErr != nil {
		return Page{}, f.fetchErr
	}
	all := f.messages[id]
	var page Page
	for i := len(all) - 1; i >= 0; i-- {
		if beforeID > 0 && all[i].ID >= beforeID {
			continue
		}
		if len(page.Content) == size {
			return page, nil
		}
		page.Content = append(page.Content, all[i])
	}
	page.Last = true
	return page, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, req SendRequest) (support.Message, error) {
	f.mu.Lock()
	f.sendCalls++
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return support.Message{}, err
	}
	m := f.saveLocked(req.ConversationID, req.SenderRole, req.EmployeeID, req.Content)
	hook := f.sendHook
	f.mu.Unlock()
	if hook != nil {
		hook(req, m)
	}
	return m, nil
}

func (f *fakeAPI) FetchEmployeeConversations(context.Context) ([]support.Conversation, error) {
	f.mu.Lock()
	if f.listErr != nil {
		err := f.listErr
		f.mu.Unlock()
		return nil, err
	}
	out := make([]support.Conversation, 0, len(f.conversations))
	for _, c := range f.conversations {
		out = append(out, c)
	}
	hook := f.listHook
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeAPI) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func (f *fakeAPI) setListHook(fn func()) {
	f.mu.Lock()
	f.listHook = fn
	f.mu.Unlock()
}

func (f *fakeAPI) ClaimConversation(_ context.Context, id, employeeID string) error {
	f.mu.Lock()
	hook := f.claimHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(id, employeeID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return errors.New("not found")
	}
	if c.Status == support.StatusEmp && !c.AssignedTo(employeeID) {
		return ErrConflict
	}
	f.conversations[id] = c.WithOwner(support.StatusEmp, employeeID)
	return nil
}

func (f *fakeAPI) ReleaseConversation(_ context.Context, id string, to support.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok || c.Status != support.StatusEmp {
		return ErrConflict
	}
	f.conversations[id] = c.WithOwner(to, "")
	return nil
}

func (f *fakeAPI) EscalateConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.conversations[id]
	if c.Status == support.StatusAI {
		f.conversations[id] = c.WithOwner(support.StatusWaitingEmp, "")
	}
	return nil
}

func (f *fakeAPI) MarkConversationRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.conversations[id]
	c.UnreadCount = 0
	f.conversations[id] = c
	return nil
}

// fakePush keeps every handler ever registered so tests can replay late deliveries.
type fakePush struct {
	mu       sync.Mutex
	active   map[string][]*fakeSub
	history  map[string][]Handler
	subErr   error
	unsubbed int
}

type fakeSub struct {
	p     *fakePush
	topic string
	h     Handler
}

func newFakePush() *fakePush {
	return &fakePush{active: make(map[string][]*fakeSub), history: make(map[string][]Handler)}
}

func (p *fakePush) Subscribe(topic string, h Handler) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subErr != nil {
		return nil, p.subErr
	}
	s := &fakeSub{p: p, topic: topic, h: h}
	p.active[topic] = append(p.active[topic], s)
	p.history[topic] = append(p.history[topic], h)
	return s, nil
}

func (s *fakeSub) Unsubscribe() {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	subs := s.p.active[s.topic]
	for i, x := range subs {
		if x == s {
			s.p.active[s.topic] = append(subs[:i], subs[i+1:]...)
			s.p.unsubbed++
			return
		}
	}
}

func (p *fakePush) deliver(topic string, payload []byte) {
	p.mu.Lock()
	subs := append([]*fakeSub(nil), p.active[topic]...)
	p.mu.Unlock()
	for _, s := range subs {
		s.h(payload)
	}
}

func (p *fakePush) deliverJSON(topic string, v any) {
	b, _ := json.Marshal(v)
	p.deliver(topic, b)
}

// replay invokes a handler registered earlier, whether or not it is still subscribed.
func (p *fakePush) replay(topic string, n int, v any) {
	p.mu.Lock()
	h := p.history[topic][n]
	p.mu.Unlock()
	b, _ := json.Marshal(v)
	h(b)
}

func (p *fakePush) subscribers(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active[topic])
}

type memTokens struct {
	mu      sync.Mutex
	token   string
	saves   int
	clears  int
	saveErr error
}

func (m *memTokens) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokens) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.token = token
	return nil
}

func (m *memTokens) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	m.token = ""
	return nil
}

func contents(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Content)
	}
	return out
}

func ids(convs []support.Conversation) []string {
	out := make([]string, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}

func messageFor(id int64, content string, clock *fakeClock) support.Message {
	return support.Message{ID: id, ConversationID: "c1", SenderRole: support.RoleCustomer, Content: content, CreatedAt: clock.Now()}
}

package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// Responder tells a customer who is currently answering.
type Responder string

const (
	ResponderAssistant Responder = "assistant"
	ResponderWaiting   Responder = "waiting"
	ResponderEmployee  Responder = "employee"
)

func ResponderFor(s support.Status) Responder {
	switch s {
	case support.StatusWaitingEmp:
		return ResponderWaiting
	case support.StatusEmp:
		return ResponderEmployee
	}
	return ResponderAssistant
}

// Widget is the customer side: one conversation, resolved once at Start.
type Widget struct {
	api        API
	resolver   *IdentityResolver
	status     *StatusMachine
	syncer     *Synchronizer
	customerID string
	logger     *slog.Logger

	mu       sync.Mutex
	identity Identity
	started  bool
	inert    bool
}

// NewWidget builds a widget for customerID, or for a guest when customerID is empty.
func NewWidget(api API, push Push, tokens TokenStore, customerID string, opts Options) *Widget {
	opts = opts.withDefaults()
	status := NewStatusMachine(opts.Logger)
	return &Widget{
		api:        api,
		resolver:   NewIdentityResolver(api, tokens, opts.Logger),
		status:     status,
		syncer:     NewSynchronizer(api, push, status, Sender{Role: support.RoleCustomer}, opts),
		customerID: customerID,
		logger:     opts.Logger,
	}
}

// Start resolves the conversation and opens it. When resolution fails the widget turns
// inert and every later call returns ErrInert.
func (w *Widget) Start(ctx context.Context) error {
	const op = "Widget.Start"
	w.mu.Lock()
	if w.inert {
		w.mu.Unlock()
		return ErrInert
	}
	w.mu.Unlock()

	id, err := w.resolver.Resolve(ctx, w.customerID)
	if err != nil {
		w.mu.Lock()
		w.inert = true
		w.mu.Unlock()
		w.logger.With("op", op).Error("widget disabled", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrInert, err)
	}

	w.mu.Lock()
	w.identity = id
	w.started = true
	w.mu.Unlock()

	if err := w.syncer.Open(ctx, id.ConversationID); err != nil {
		// polling is running and will fill the view
		w.logger.With("op", op).Warn("first page unavailable", slog.Any("error", err))
	}
	return nil
}

func (w *Widget) ready() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inert {
		return ErrInert
	}
	if !w.started {
		return ErrNoConversation
	}
	return nil
}

func (w *Widget) Identity() Identity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.identity
}

// ComposeEnabled is true once a conversation is open; customers may always write to it.
func (w *Widget) ComposeEnabled() bool {
	return w.ready() == nil && w.syncer.ConversationID() != "" && !w.syncer.Sending()
}

func (w *Widget) Send(ctx context.Context, content string) (support.Message, error) {
	if err := w.ready(); err != nil {
		return support.Message{}, err
	}
	return w.syncer.Send(ctx, content)
}

// Responder reports who answers, defaulting to the assistant before any status is known.
func (w *Widget) Responder() Responder {
	st, ok := w.status.Current(w.Identity().ConversationID)
	if !ok {
		return ResponderAssistant
	}
	return ResponderFor(st.Status)
}

// RequestHuman asks for an employee. It is a no-op when a human is already waiting or answering.
func (w *Widget) RequestHuman(ctx context.Context) error {
	if err := w.ready(); err != nil {
		return err
	}
	id := w.Identity().ConversationID
	if st, ok := w.status.Current(id); ok && st.Status != support.StatusAI {
		return nil
	}
	if err := w.api.EscalateConversation(ctx, id); err != nil {
		return err
	}
	w.status.Observe(id, ConversationStatus{Status: support.StatusWaitingEmp})
	return nil
}

func (w *Widget) Messages() []Entry { return w.syncer.Messages() }

func (w *Widget) LoadMore(ctx context.Context) error {
	if err := w.ready(); err != nil {
		return err
	}
	return w.syncer.LoadMore(ctx)
}

func (w *Widget) Draft() string { return w.syncer.Draft() }

func (w *Widget) OnChange(fn func()) { w.syncer.OnChange(fn) }

func (w *Widget) OnTransition(fn func(Transition)) { w.status.OnTransition(fn) }

// Close stops polling and drops the push subscription.
func (w *Widget) Close() { w.syncer.Close() }

// Console is the employee side: the directory, claims and one open conversation.
type Console struct {
	api        API
	employeeID string
	dir        *Directory
	status     *StatusMachine
	syncer     *Synchronizer
	claims     *ClaimCoordinator
	fanout     *Fanout
	logger     *slog.Logger
	interval   time.Duration

	mu   sync.Mutex
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewConsole(api API, push Push, employeeID string, opts Options) *Console {
	opts = opts.withDefaults()
	status := NewStatusMachine(opts.Logger)
	dir := NewDirectory(api, employeeID, opts)
	syncer := NewSynchronizer(api, push, status, Sender{Role: support.RoleEmployee, EmployeeID: employeeID}, opts)
	c := &Console{
		api:        api,
		employeeID: employeeID,
		dir:        dir,
		status:     status,
		syncer:     syncer,
		claims:     NewClaimCoordinator(api, dir, status, syncer, opts.Logger),
		fanout:     NewFanout(push, dir, status, syncer, opts.Logger),
		logger:     opts.Logger,
		interval:   opts.PollInterval,
	}
	status.OnTransition(c.onTransition)
	return c
}

// onTransition drops the open view once this employee no longer owns it.
func (c *Console) onTransition(t Transition) {
	if t.ConversationID != c.syncer.ConversationID() {
		return
	}
	if t.From.OwnedBy(c.employeeID) && !t.To.OwnedBy(c.employeeID) {
		c.syncer.Reset()
	}
}

// Start subscribes to employee notifications, starts the directory poll and loads the
// directory. A failed first load is returned; the poll retries it.
func (c *Console) Start(ctx context.Context) error {
	const op = "Console.Start"
	if err := c.fanout.Start(); err != nil {
		c.logger.With("op", op).Warn("notification subscription failed", slog.Any("error", err))
	}
	c.mu.Lock()
	if c.stop == nil {
		pollCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		c.stop = stop
		c.wg.Add(1)
		go c.pollDirectory(pollCtx)
	}
	c.mu.Unlock()
	return c.dir.Refresh(ctx)
}

// pollDirectory refreshes on a fixed interval so a silent push channel or a failed
// fetch heals without a notification.
func (c *Console) pollDirectory(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.dir.Refresh(ctx)
		}
	}
}

func (c *Console) Refresh(ctx context.Context) error { return c.dir.Refresh(ctx) }

func (c *Console) Queue() []support.Conversation { return c.dir.Queue() }

func (c *Console) Mine() []support.Conversation { return c.dir.Mine() }

func (c *Console) Conversation(id string) (support.Conversation, bool) { return c.dir.Get(id) }

// Search filters every visible conversation by name, phone or last message.
func (c *Console) Search(query string) []support.Conversation { return Search(c.dir.All(), query) }

func (c *Console) Groups(convs []support.Conversation, loc *time.Location) []DateGroup {
	return GroupByDate(convs, loc)
}

// Open shows id and clears its unread counter.
func (c *Console) Open(ctx context.Context, id string) error {
	const op = "Console.Open"
	if err := c.syncer.Open(ctx, id); err != nil {
		return err
	}
	if err := c.dir.MarkRead(ctx, id); err != nil {
		c.logger.With("op", op).Warn("mark read failed", slog.String("conversation_id", id), slog.Any("error", err))
	}
	return nil
}

func (c *Console) OpenConversationID() string { return c.syncer.ConversationID() }

// ComposeEnabled is true while the open conversation is EMP and assigned to this employee.
func (c *Console) ComposeEnabled() bool {
	id := c.syncer.ConversationID()
	if id == "" || c.syncer.Sending() {
		return false
	}
	st, ok := c.status.Current(id)
	return ok && st.OwnedBy(c.employeeID)
}

func (c *Console) Send(ctx context.Context, content string) (support.Message, error) {
	if !c.ComposeEnabled() {
		if c.syncer.Sending() {
			return support.Message{}, ErrSendInFlight
		}
		return support.Message{}, ErrComposeDisabled
	}
	return c.syncer.Send(ctx, content)
}

func (c *Console) Claim(ctx context.Context, id string) error { return c.claims.Claim(ctx, id) }

func (c *Console) Release(ctx context.Context, id string) error { return c.claims.Release(ctx, id) }

func (c *Console) Requeue(ctx context.Context, id string) error { return c.claims.Requeue(ctx, id) }

func (c *Console) ClaimInFlight(id string) bool { return c.claims.InFlight(id) }

func (c *Console) Messages() []Entry { return c.syncer.Messages() }

func (c *Console) LoadMore(ctx context.Context) error { return c.syncer.LoadMore(ctx) }

func (c *Console) Draft() string { return c.syncer.Draft() }

func (c *Console) Status(id string) (ConversationStatus, bool) { return c.status.Current(id) }

func (c *Console) OnDirectoryChange(fn func()) { c.dir.OnChange(fn) }

func (c *Console) OnMessagesChange(fn func()) { c.syncer.OnChange(fn) }

// Close stops notifications, polling and subscriptions.
func (c *Console) Close() {
	c.mu.Lock()
	stop := c.stop
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	c.wg.Wait()
	c.fanout.Stop()
	c.syncer.Close()
}

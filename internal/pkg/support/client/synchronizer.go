package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// Entry is one displayed message. Pending entries are local copies of sends the server has
// not confirmed yet; they carry a TempID and always render after confirmed messages.
type Entry struct {
	support.Message
	TempID  string `json:"tempId,omitempty"`
	Pending bool   `json:"pending,omitempty"`
}

// Sender identifies who this client writes as.
type Sender struct {
	Role       support.SenderRole
	EmployeeID string
}

type mergeKind int

const (
	mergeInitial mergeKind = iota // first page after open
	mergeLive                     // push event
	mergePoll                     // periodic latest page
	mergeHistory                  // older page from LoadMore
	mergeSent                     // server confirmation of a local send
)

// batch is one delivery into merge. Every producer goes through the same merge.
type batch struct {
	kind     mergeKind
	epoch    uint64
	messages []support.Message
	last     bool
	tempID   string
}

// Synchronizer owns the displayed message list of the open conversation. Push events, polls,
// history pages and send confirmations are all merged by one function that dedups by id,
// reconciles pending copies by role, content and time, and keeps the list ordered by id.
//
// Every open bumps an epoch; deliveries tagged with an older epoch are dropped, so a late
// event for a previous conversation cannot touch the current one.
type Synchronizer struct {
	api    API
	push   Push
	status *StatusMachine
	sender Sender
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	epoch       uint64
	convID      string
	openedAt    time.Time
	confirmed   []support.Message // ascending id
	index       map[int64]struct{}
	pending     []Entry
	hasMore     bool
	ledger      *ledger
	sending     bool
	recentSends map[string]time.Time
	draft       string
	lastErr     error
	stop        context.CancelFunc
	sub         Subscription
	listeners   []func()

	wg sync.WaitGroup
}

func NewSynchronizer(api API, push Push, status *StatusMachine, sender Sender, opts Options) *Synchronizer {
	opts = opts.withDefaults()
	return &Synchronizer{
		api:         api,
		push:        push,
		status:      status,
		sender:      sender,
		opts:        opts,
		logger:      opts.Logger,
		index:       make(map[int64]struct{}),
		ledger:      newLedger(opts.LedgerTTL),
		recentSends: make(map[string]time.Time),
	}
}

// OnChange registers fn to run after the displayed list or send state changed.
func (s *Synchronizer) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Open switches to conversationID: previous timers, subscription and transient state are
// discarded, the newest page is fetched and polling starts. A failed first fetch is
// returned but polling still runs and will fill the view.
func (s *Synchronizer) Open(ctx context.Context, conversationID string) error {
	const op = "Synchronizer.Open"
	if conversationID == "" {
		return ErrNoConversation
	}

	s.mu.Lock()
	cleanup := s.resetLocked()
	epoch := s.epoch
	s.convID = conversationID
	s.openedAt = s.opts.Now()
	s.hasMore = true
	pollCtx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.wg.Add(1)
	s.mu.Unlock()
	cleanup()

	if s.push != nil {
		sub, err := s.push.Subscribe(support.ConversationTopic(conversationID), func(payload []byte) {
			s.onPush(epoch, conversationID, payload)
		})
		if err != nil {
			s.logger.With("op", op).Warn("push subscription failed, relying on polling",
				slog.String("conversation_id", conversationID), slog.Any("error", err))
		} else {
			s.mu.Lock()
			if s.epoch == epoch {
				s.sub = sub
				sub = nil
			}
			s.mu.Unlock()
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}

	go s.pollLoop(pollCtx, epoch, conversationID)

	fetchCtx, cancelFetch := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancelFetch()
	page, err := s.api.FetchMessagesPaged(fetchCtx, conversationID, 0, s.opts.PageSize)
	if err != nil {
		s.fail(epoch, err)
		s.logger.With("op", op).Warn("initial fetch failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	s.merge(batch{kind: mergeInitial, epoch: epoch, messages: page.Content, last: page.Last})
	s.refreshStatus(fetchCtx, conversationID)
	return nil
}

// LoadMore prepends the page older than the oldest displayed message.
func (s *Synchronizer) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.convID == "" {
		s.mu.Unlock()
		return ErrNoConversation
	}
	if !s.hasMore || len(s.confirmed) == 0 {
		s.mu.Unlock()
		return nil
	}
	epoch, convID, cursor := s.epoch, s.convID, s.confirmed[0].ID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	page, err := s.api.FetchMessagesPaged(ctx, convID, cursor, s.opts.PageSize)
	if err != nil {
		s.fail(epoch, err)
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	s.merge(batch{kind: mergeHistory, epoch: epoch, messages: page.Content, last: page.Last})
	return nil
}

// Revalidate pulls the newest page and status now instead of waiting for the next poll.
func (s *Synchronizer) Revalidate(ctx context.Context) error {
	s.mu.Lock()
	epoch, convID := s.epoch, s.convID
	s.mu.Unlock()
	if convID == "" {
		return ErrNoConversation
	}
	return s.pullLatest(ctx, epoch, convID)
}

// Send transmits content as a new message. The guards run in order: content rules, minimum
// time since open, one send at a time, and no identical text within the double-submit window.
// On failure the pending copy is removed and the text stays available through Draft.
func (s *Synchronizer) Send(ctx context.Context, content string) (support.Message, error) {
	text, err := support.NormalizeContent(content)
	if err != nil {
		return support.Message{}, err
	}

	s.mu.Lock()
	if s.convID == "" {
		s.mu.Unlock()
		return support.Message{}, ErrNoConversation
	}
	now := s.opts.Now()
	if now.Sub(s.openedAt) < s.opts.MinOpenBeforeSend {
		s.mu.Unlock()
		return support.Message{}, ErrTooSoon
	}
	if s.sending {
		s.mu.Unlock()
		return support.Message{}, ErrSendInFlight
	}
	for k, at := range s.recentSends {
		if now.Sub(at) >= s.opts.DoubleSubmitWindow {
			delete(s.recentSends, k)
		}
	}
	if _, dup := s.recentSends[text]; dup {
		s.mu.Unlock()
		return support.Message{}, ErrDuplicateSend
	}
	s.recentSends[text] = now
	s.sending = true
	s.draft = text
	s.ledger.sent(s.sender.Role, text, now)

	epoch, convID := s.epoch, s.convID
	local := support.Message{ConversationID: convID, SenderRole: s.sender.Role, Content: text, CreatedAt: now}
	if s.sender.EmployeeID != "" {
		emp := s.sender.EmployeeID
		local.EmployeeID = &emp
	}
	tempID := uuid.NewString()
	s.pending = append(s.pending, Entry{Message: local, TempID: tempID, Pending: true})
	s.mu.Unlock()
	s.notify()

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	msg, err := s.api.SendMessage(sendCtx, SendRequest{
		ConversationID: convID,
		SenderRole:     s.sender.Role,
		EmployeeID:     local.EmployeeID,
		Content:        text,
	})

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if err != nil {
			return support.Message{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		return msg, nil
	}
	s.sending = false
	if err != nil {
		s.removePendingLocked(tempID)
		delete(s.recentSends, text)
		s.ledger.forget(s.sender.Role, text)
		s.mu.Unlock()
		s.notify()
		return support.Message{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	s.draft = ""
	s.mu.Unlock()

	s.merge(batch{kind: mergeSent, epoch: epoch, messages: []support.Message{msg}, tempID: tempID})
	return msg, nil
}

// Reset closes the open conversation view: timers stop, the subscription is dropped and the
// message cache, send guards and dedup ledger are cleared.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	cleanup := s.resetLocked()
	s.mu.Unlock()
	cleanup()
	s.notify()
}

// Close resets and waits for the poller to exit.
func (s *Synchronizer) Close() {
	s.Reset()
	s.wg.Wait()
}

func (s *Synchronizer) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

// Messages returns the displayed list: confirmed messages by ascending id, then pending copies.
func (s *Synchronizer) Messages() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.confirmed)+len(s.pending))
	for _, m := range s.confirmed {
		out = append(out, Entry{Message: m})
	}
	return append(out, s.pending...)
}

func (s *Synchronizer) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *Synchronizer) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Draft is the text of the last send that did not go through.
func (s *Synchronizer) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// LastError is the most recent fetch failure for the open conversation, cleared by the next success.
func (s *Synchronizer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Synchronizer) pollLoop(ctx context.Context, epoch uint64, convID string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.pullLatest(ctx, epoch, convID)
		}
	}
}

func (s *Synchronizer) pullLatest(ctx context.Context, epoch uint64, convID string) error {
	const op = "Synchronizer.pullLatest"
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	page, err := s.api.FetchMessagesPaged(ctx, convID, 0, s.opts.PageSize)
	if err != nil {
		s.fail(epoch, err)
		s.logger.With("op", op).Warn("poll failed", slog.String("conversation_id", convID), slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	s.merge(batch{kind: mergePoll, epoch: epoch, messages: page.Content, last: page.Last})
	s.refreshStatus(ctx, convID)
	return nil
}

func (s *Synchronizer) refreshStatus(ctx context.Context, convID string) {
	if s.status == nil {
		return
	}
	st, err := s.api.FetchConversationStatus(ctx, convID)
	if err != nil {
		s.logger.With("op", "Synchronizer.refreshStatus").Warn("status fetch failed",
			slog.String("conversation_id", convID), slog.Any("error", err))
		return
	}
	s.status.Observe(convID, st)
}

func (s *Synchronizer) onPush(epoch uint64, convID string, payload []byte) {
	var ev support.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.With("op", "Synchronizer.onPush").Debug("ignoring malformed event", slog.Any("error", err))
		return
	}
	switch ev.Type {
	case support.EventMessage:
		if ev.Message != nil {
			s.merge(batch{kind: mergeLive, epoch: epoch, messages: []support.Message{*ev.Message}})
		}
	case support.EventStatus:
		if s.status != nil && (ev.ConversationID == "" || ev.ConversationID == convID) {
			s.status.Observe(convID, ConversationStatus{Status: ev.Status, AssignedEmployeeID: ev.AssignedEmployeeID})
		}
	}
}

func (s *Synchronizer) merge(b batch) {
	s.mu.Lock()
	changed := s.mergeLocked(b)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Synchronizer) mergeLocked(b batch) bool {
	if b.epoch != s.epoch || s.convID == "" {
		return false
	}
	s.ledger.prune(s.opts.Now())

	incoming := make([]support.Message, 0, len(b.messages))
	for _, m := range b.messages {
		if m.ConversationID != "" && m.ConversationID != s.convID {
			continue
		}
		incoming = append(incoming, m)
	}
	sort.Slice(incoming, func(i, j int) bool { return incoming[i].ID < incoming[j].ID })

	changed := false
	switch b.kind {
	case mergeInitial, mergePoll:
		s.lastErr = nil
		changed = s.replaceRangeLocked(incoming)
		if b.kind == mergeInitial && b.last {
			s.hasMore = false
		}
	case mergeHistory:
		s.lastErr = nil
		s.hasMore = !b.last
		changed = true
	case mergeSent:
		if s.removePendingLocked(b.tempID) {
			changed = true
		}
		for _, m := range incoming {
			s.ledger.confirm(m)
		}
	}
	for _, m := range incoming {
		if s.admitLocked(m, b.kind == mergeSent) {
			changed = true
		}
	}
	return changed
}

// replaceRangeLocked drops displayed messages inside the page's id range that the page no
// longer contains. Messages older or newer than the page stay untouched.
func (s *Synchronizer) replaceRangeLocked(page []support.Message) bool {
	if len(page) == 0 {
		return false
	}
	lo, hi := page[0].ID, page[len(page)-1].ID
	keep := make(map[int64]struct{}, len(page))
	for _, m := range page {
		keep[m.ID] = struct{}{}
	}
	out := s.confirmed[:0]
	removed := false
	for _, m := range s.confirmed {
		if m.ID >= lo && m.ID <= hi {
			if _, ok := keep[m.ID]; !ok {
				delete(s.index, m.ID)
				removed = true
				continue
			}
		}
		out = append(out, m)
	}
	s.confirmed = out
	return removed
}

// admitLocked adds m unless it is already displayed or echoes a local send. own marks the
// server's answer to our send, which is never an echo.
func (s *Synchronizer) admitLocked(m support.Message, own bool) bool {
	if m.ID == 0 {
		return false
	}
	if _, ok := s.index[m.ID]; ok {
		return false
	}
	if i := s.matchPendingLocked(m); i >= 0 {
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.ledger.confirm(m)
	} else if !own && s.ledger.echo(m, s.opts.DedupWindow) {
		return false
	}

	i := sort.Search(len(s.confirmed), func(i int) bool { return s.confirmed[i].ID > m.ID })
	s.confirmed = append(s.confirmed, support.Message{})
	copy(s.confirmed[i+1:], s.confirmed[i:])
	s.confirmed[i] = m
	s.index[m.ID] = struct{}{}
	return true
}

func (s *Synchronizer) matchPendingLocked(m support.Message) int {
	for i, p := range s.pending {
		if p.SenderRole == m.SenderRole && p.Content == m.Content && within(p.CreatedAt, m.CreatedAt, s.opts.DedupWindow) {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) removePendingLocked(tempID string) bool {
	for i, p := range s.pending {
		if p.TempID == tempID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// resetLocked clears the view and returns a func that stops the poller and unsubscribes.
// Call it after releasing the lock.
func (s *Synchronizer) resetLocked() func() {
	s.epoch++
	stop, sub := s.stop, s.sub
	s.stop, s.sub = nil, nil
	s.convID = ""
	s.confirmed = nil
	s.index = make(map[int64]struct{})
	s.pending = nil
	s.hasMore = false
	s.ledger = newLedger(s.opts.LedgerTTL)
	s.sending = false
	s.recentSends = make(map[string]time.Time)
	s.lastErr = nil
	return func() {
		if stop != nil {
			stop()
		}
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

func (s *Synchronizer) fail(epoch uint64, err error) {
	s.mu.Lock()
	if s.epoch == epoch {
		s.lastErr = err
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

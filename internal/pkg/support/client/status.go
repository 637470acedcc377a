package client

import (
	"log/slog"
	"sync"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// Transition is an observed change of a conversation's routing state.
type Transition struct {
	ConversationID string
	From           ConversationStatus
	To             ConversationStatus
	First          bool // no prior observation existed
}

// StatusMachine mirrors the server's routing state for the conversations this client
// looks at. The server is authoritative: every observation is accepted, even when
// intermediate transitions were missed.
type StatusMachine struct {
	mu        sync.Mutex
	states    map[string]ConversationStatus
	listeners []func(Transition)
	logger    *slog.Logger
}

func NewStatusMachine(logger *slog.Logger) *StatusMachine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusMachine{states: make(map[string]ConversationStatus), logger: logger}
}

// OnTransition registers fn for every change. Listeners run on the observing goroutine.
func (m *StatusMachine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Observe records st for id and notifies listeners when it differs from what was known.
func (m *StatusMachine) Observe(id string, st ConversationStatus) (Transition, bool) {
	if id == "" || !st.Status.Valid() {
		return Transition{}, false
	}
	m.mu.Lock()
	prev, known := m.states[id]
	if known && prev.Equal(st) {
		m.mu.Unlock()
		return Transition{}, false
	}
	m.states[id] = st
	listeners := append([]func(Transition){}, m.listeners...)
	m.mu.Unlock()

	if known && prev.Status != st.Status && !support.CanTransition(prev.Status, st.Status) {
		m.logger.With("op", "StatusMachine.Observe").Debug("skipped intermediate transition",
			slog.String("conversation_id", id), slog.String("from", string(prev.Status)), slog.String("to", string(st.Status)))
	}
	t := Transition{ConversationID: id, From: prev, To: st, First: !known}
	for _, fn := range listeners {
		fn(t)
	}
	return t, true
}

func (m *StatusMachine) Current(id string) (ConversationStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	return st, ok
}

func (m *StatusMachine) Forget(id string) {
	m.mu.Lock()
	delete(m.states, id)
	m.mu.Unlock()
}

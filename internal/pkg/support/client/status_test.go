package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

func emp(id string) ConversationStatus {
	return ConversationStatus{Status: support.StatusEmp, AssignedEmployeeID: &id}
}

func TestStatusMachine_Observe(t *testing.T) {
	m := NewStatusMachine(discardLogger())
	var seen []Transition
	m.OnTransition(func(tr Transition) { seen = append(seen, tr) })

	tr, ok := m.Observe("1", ConversationStatus{Status: support.StatusAI})
	require.True(t, ok)
	assert.True(t, tr.First)

	_, ok = m.Observe("1", ConversationStatus{Status: support.StatusAI})
	assert.False(t, ok, "repeated observation is not a transition")

	_, ok = m.Observe("1", emp("e1"))
	assert.True(t, ok, "AI to EMP directly is allowed")

	tr, ok = m.Observe("1", emp("e2"))
	require.True(t, ok, "reassignment is a change")
	assert.True(t, tr.From.OwnedBy("e1"))
	assert.True(t, tr.To.OwnedBy("e2"))

	_, ok = m.Observe("1", ConversationStatus{Status: "CLOSED"})
	assert.False(t, ok)
	_, ok = m.Observe("", ConversationStatus{Status: support.StatusAI})
	assert.False(t, ok)

	assert.Len(t, seen, 3)
	st, _ := m.Current("1")
	assert.True(t, st.OwnedBy("e2"))

	m.Forget("1")
	_, ok = m.Current("1")
	assert.False(t, ok)
}

func TestStatusMachine_AcceptsSkippedTransitions(t *testing.T) {
	m := NewStatusMachine(nil)
	m.Observe("1", ConversationStatus{Status: support.StatusWaitingEmp})
	_, ok := m.Observe("1", ConversationStatus{Status: support.StatusAI})
	assert.True(t, ok, "server state wins even when EMP was never seen")
}

func TestConversationStatus(t *testing.T) {
	assert.True(t, emp("e1").Equal(emp("e1")))
	assert.False(t, emp("e1").Equal(emp("e2")))
	assert.False(t, emp("e1").OwnedBy(""))
	assert.False(t, ConversationStatus{Status: support.StatusWaitingEmp}.OwnedBy("e1"))
	assert.Equal(t, ResponderWaiting, ResponderFor(support.StatusWaitingEmp))
	assert.Equal(t, ResponderAssistant, ResponderFor(support.StatusAI))
}

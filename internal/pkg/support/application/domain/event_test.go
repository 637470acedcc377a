package support

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotice(t *testing.T) {
	cases := map[string]Notice{
		`42`:      {ConversationID: "42"},
		`"abc-1"`: {ConversationID: "abc-1"},
		`abc-1`:   {ConversationID: "abc-1"},
		`{"conversationId":"42","status":"EMP","assignedEmployeeId":"e1"}`: {
			ConversationID: "42", Status: StatusEmp, AssignedEmployeeID: strPtr("e1"),
		},
		`{"conversationId":"7"}`: {ConversationID: "7"},
	}
	for in, want := range cases {
		got, err := ParseNotice([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{``, `  `, `{"status":"EMP"}`, `{"conversationId":"1","status":"DONE"}`, `""`, `{broken`} {
		_, err := ParseNotice([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidNotice, bad)
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "conversation.42", ConversationTopic("42"))
	id, ok := ConversationIDFromTopic("conversation.42")
	assert.True(t, ok)
	assert.Equal(t, "42", id)
	_, ok = ConversationIDFromTopic("conversation.")
	assert.False(t, ok)
	_, ok = ConversationIDFromTopic(EmployeeTopic)
	assert.False(t, ok)

	ev := StatusEvent(Conversation{ID: "42"}.WithOwner(StatusEmp, "e1"))
	assert.Equal(t, EventStatus, ev.Type)
	assert.Equal(t, StatusEmp, ev.Status)
	require.NotNil(t, ev.AssignedEmployeeID)
	assert.Equal(t, "e1", *ev.AssignedEmployeeID)
}

func strPtr(s string) *string { return &s }

package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityResolver_Guest(t *testing.T) {
	api := newFakeAPI(newFakeClock())
	tokens := &memTokens{}
	r := NewIdentityResolver(api, tokens, discardLogger())

	id, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, id.Guest())
	assert.Equal(t, "conv-1", id.ConversationID)
	assert.Equal(t, "conv-1", tokens.token)

	again, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, api.initCalls)
	assert.Equal(t, 1, tokens.saves)
}

func TestIdentityResolver_GuestInitRetriedOnce(t *testing.T) {
	api := newFakeAPI(newFakeClock())
	api.initErr = errors.New("502 bad gateway")
	tokens := &memTokens{}
	r := NewIdentityResolver(api, tokens, discardLogger())

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrIdentityUnresolved)
	assert.Equal(t, 2, api.initCalls)
	assert.Empty(t, tokens.token)
}

func TestIdentityResolver_GuestTokenNotPersisted(t *testing.T) {
	api := newFakeAPI(newFakeClock())
	tokens := &memTokens{saveErr: errors.New("read-only file system")}
	r := NewIdentityResolver(api, tokens, discardLogger())

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrIdentityUnresolved)
}

func TestIdentityResolver_Customer(t *testing.T) {
	api := newFakeAPI(newFakeClock())
	api.customers["cust-1"] = []string{"c9", "c3"}
	tokens := &memTokens{token: "old-guest"}
	r := NewIdentityResolver(api, tokens, discardLogger())

	id, err := r.Resolve(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, Identity{ConversationID: "c9", CustomerID: "cust-1"}, id)
	assert.False(t, id.Guest())
	assert.Empty(t, tokens.token, "guest token cleared once the customer is known")
	assert.Zero(t, api.initCalls)
}

func TestIdentityResolver_CustomerWithoutConversation(t *testing.T) {
	api := newFakeAPI(newFakeClock())
	tokens := &memTokens{token: "old-guest"}
	r := NewIdentityResolver(api, tokens, discardLogger())

	id, err := r.Resolve(context.Background(), "cust-2")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", id.ConversationID)
	assert.NotEqual(t, "old-guest", id.ConversationID)
	assert.Equal(t, 1, tokens.clears)
}

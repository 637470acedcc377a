package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/adapter"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/realtime"
	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client"
	repoAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/adapter"
	supportHTTP "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/http"
)

type routerPublisher struct{ router *realtime.Router }

func (p routerPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.router.Publish(topic, payload)
	return nil
}

type server struct {
	api    string
	ws     string
	router *realtime.Router
}

func startServer(t *testing.T) server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := realtime.NewRouter()
	set := usecase.NewSet(repoAdapter.NewMemoryConversationRepository(), cacheAdapter.NewMemoryCache(),
		routerPublisher{router}, nil, time.Minute, nil)
	engine := gin.New()
	supportHTTP.RegisterRoutes(engine.Group("/api/v1"), set, router, supportHTTP.Options{})
	ts := httptest.NewServer(engine)
	t.Cleanup(func() {
		router.Close()
		ts.Close()
	})
	api := ts.URL + "/api/v1/support"
	return server{api: api, ws: "ws" + strings.TrimPrefix(api, "http") + "/ws", router: router}
}

var (
	guest    = Credentials{}
	employee = func(id string) Credentials { return Credentials{Role: "EMP", Subject: id} }
)

func TestAPIClient_GuestConversation(t *testing.T) {
	srv := startServer(t)
	api := NewAPIClient(srv.api+"/", guest, nil)
	ctx := context.Background()

	id, err := api.InitConversation(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st, err := api.FetchConversationStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, support.StatusAI, st.Status)
	assert.Nil(t, st.AssignedEmployeeID)

	for _, text := range []string{"one", "two", "three"} {
		msg, err := api.SendMessage(ctx, client.SendRequest{ConversationID: id, SenderRole: support.RoleCustomer, Content: text})
		require.NoError(t, err)
		assert.Equal(t, support.RoleCustomer, msg.SenderRole)
	}

	page, err := api.FetchMessagesPaged(ctx, id, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "three", page.Content[0].Content)
	assert.False(t, page.Last)

	older, err := api.FetchMessagesPaged(ctx, id, page.Content[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, older.Content, 1)
	assert.Equal(t, "one", older.Content[0].Content)
	assert.True(t, older.Last)

	require.NoError(t, api.EscalateConversation(ctx, id))
	st, err = api.FetchConversationStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, support.StatusWaitingEmp, st.Status)

	_, err = api.SendMessage(ctx, client.SendRequest{ConversationID: id, Content: "   "})
	assert.True(t, IsStatus(err, http.StatusBadRequest), "%v", err)
}

func TestAPIClient_ClaimConflict(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	id, err := NewAPIClient(srv.api, guest, nil).InitConversation(ctx)
	require.NoError(t, err)

	e1 := NewAPIClient(srv.api, employee("e1"), nil)
	e2 := NewAPIClient(srv.api, employee("e2"), nil)

	require.NoError(t, e1.ClaimConversation(ctx, id, "e1"))
	err = e2.ClaimConversation(ctx, id, "e2")
	assert.ErrorIs(t, err, client.ErrConflict)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "already_claimed", se.Code)

	convs, err := e2.FetchEmployeeConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "e1", convs[0].Assignee())

	assert.ErrorIs(t, e2.ReleaseConversation(ctx, id, support.StatusAI), client.ErrConflict)
	require.NoError(t, e1.MarkConversationRead(ctx, id))
	require.NoError(t, e1.ReleaseConversation(ctx, id, support.StatusWaitingEmp))
	st, err := e1.FetchConversationStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, support.StatusWaitingEmp, st.Status)

	_, err = NewAPIClient(srv.api, guest, nil).FetchEmployeeConversations(ctx)
	assert.True(t, IsStatus(err, http.StatusForbidden), "%v", err)
}

func TestAPIClient_CustomerConversations(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	cust := NewAPIClient(srv.api, Credentials{Role: "CUSTOMER", Subject: "cust-1"}, nil)

	ids, err := cust.GetConversations(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	id, err := cust.InitConversation(ctx)
	require.NoError(t, err)
	ids, err = cust.GetConversations(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestSocketPush_DeliversAndResubscribes(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	push := NewSocketPush(srv.ws, employee("e1"), nil)
	push.Start(ctx)
	defer push.Close()

	got := make(chan []byte, 8)
	sub, err := push.Subscribe(support.EmployeeTopic, func(p []byte) { got <- p })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.router.Subscribers(support.EmployeeTopic) == 1 }, 2*time.Second, 10*time.Millisecond)

	id, err := NewAPIClient(srv.api, guest, nil).InitConversation(ctx)
	require.NoError(t, err)
	select {
	case p := <-got:
		n, err := support.ParseNotice(p)
		require.NoError(t, err)
		assert.Equal(t, id, n.ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Eventually(t, func() bool { return srv.router.Subscribers(support.EmployeeTopic) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSocketPush_CloseWithoutStart(t *testing.T) {
	push := NewSocketPush("ws://127.0.0.1:1/ws", guest, nil)
	push.Close()
	assert.False(t, push.Connected())
}

func TestWidgetOverHTTP(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	push := NewSocketPush(srv.ws, guest, nil)
	push.Start(ctx)
	defer push.Close()

	tokens := NewFileTokenStore(filepath.Join(t.TempDir(), "guest-token"))
	opts := client.DefaultOptions()
	opts.MinOpenBeforeSend = 0
	w := client.NewWidget(NewAPIClient(srv.api, guest, nil), push, tokens, "", opts)
	defer w.Close()

	require.NoError(t, w.Start(ctx))
	saved, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, w.Identity().ConversationID, saved)

	_, err = w.Send(ctx, "do you deliver on sundays?")
	require.NoError(t, err)
	require.NoError(t, w.RequestHuman(ctx))
	assert.Equal(t, client.ResponderWaiting, w.Responder())

	// the escalation system message arrives through push or the next poll
	assert.Eventually(t, func() bool { return len(w.Messages()) >= 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "do you deliver on sundays?", w.Messages()[0].Content)
}

func TestFileTokenStore(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "nested", "token"))

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, store.Save("abc-123"))
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc-123", tok)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	assert.True(t, strings.HasSuffix(DefaultTokenPath(), filepath.Join("supportctl", "guest-token")))
}

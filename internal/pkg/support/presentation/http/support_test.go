package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/adapter"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/realtime"
	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	repoAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/adapter"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// directPublisher skips the bus and hands events straight to the router.
type directPublisher struct{ router *realtime.Router }

func (p directPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.router.Publish(topic, payload)
	return nil
}

type testServer struct {
	engine *gin.Engine
	router *realtime.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := realtime.NewRouter()
	t.Cleanup(router.Close)

	set := usecase.NewSet(repoAdapter.NewMemoryConversationRepository(), cacheAdapter.NewMemoryCache(),
		directPublisher{router}, nil, time.Minute, nil)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), set, router, Options{})
	return &testServer{engine: engine, router: router}
}

func (s *testServer) do(method, path, role, subject string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, "/api/v1/support"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(middleware.HeaderRole, role)
		req.Header.Set(middleware.HeaderSubject, subject)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) newGuestConversation(t *testing.T) support.Conversation {
	t.Helper()
	w := s.do(http.MethodPost, "/conversations", "", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c support.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestRoutes_GuestSendAndPage(t *testing.T) {
	s := newTestServer(t)
	c := s.newGuestConversation(t)
	assert.Equal(t, support.StatusAI, c.Status)

	w := s.do(http.MethodPost, "/conversations/"+c.ID+"/messages", "", "", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/conversations/"+c.ID+"/messages?size=10", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page usecase.MessagePage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Content, 1)
	assert.Equal(t, "hello", page.Content[0].Content)
	assert.True(t, page.Last)

	w = s.do(http.MethodGet, "/conversations/"+c.ID+"/messages?size=abc", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/conversations/"+c.ID+"/messages", "", "", map[string]string{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/conversations/"+c.ID+"/status", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"conversationId":"`+c.ID+`","status":"AI","assignedEmployeeId":null}`, w.Body.String())
}

func TestRoutes_ClaimConflictIs409(t *testing.T) {
	s := newTestServer(t)
	c := s.newGuestConversation(t)

	w := s.do(http.MethodPost, "/conversations/"+c.ID+"/escalate", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/conversations/"+c.ID+"/claim", "EMP", "emp-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/conversations/"+c.ID+"/claim", "EMP", "emp-2", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_claimed", decodeError(t, w))

	w = s.do(http.MethodPost, "/conversations/"+c.ID+"/release", "EMP", "emp-2", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "not_owner", decodeError(t, w))

	w = s.do(http.MethodPost, "/conversations/missing/claim", "EMP", "emp-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/conversations/"+c.ID+"/release", "EMP", "emp-1", map[string]string{"to": "WAITING_EMP"})
	require.Equal(t, http.StatusOK, w.Code)
	var released support.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &released))
	assert.Equal(t, support.StatusWaitingEmp, released.Status)
}

func TestRoutes_EmployeeEndpointsRequireEmployee(t *testing.T) {
	s := newTestServer(t)
	c := s.newGuestConversation(t)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/employee/conversations", "", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/conversations/"+c.ID+"/claim", "CUSTOMER", "c1", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/conversations/"+c.ID+"/read", "EMP", "emp-1", nil).Code)

	w := s.do(http.MethodGet, "/employee/conversations", "EMP", "emp-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs []support.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &convs))
	assert.Len(t, convs, 1)
}

func TestRoutes_CustomerConversations(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/conversations", "CUSTOMER", "c1", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/customers/c1/conversations", "CUSTOMER", "c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ids []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
	assert.Len(t, ids, 1)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/customers/c1/conversations", "CUSTOMER", "c2", nil).Code)
}

func TestRoutes_SocketSubscriptions(t *testing.T) {
	s := newTestServer(t)
	c := s.newGuestConversation(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/support/ws"

	read := func(ws *websocket.Conn) realtime.Frame {
		t.Helper()
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f realtime.Frame
		require.NoError(t, ws.ReadJSON(&f))
		return f
	}

	guest, _, err := websocket.DefaultDialer.Dial(base, nil)
	require.NoError(t, err)
	defer guest.Close()
	assert.Equal(t, realtime.FrameConnected, read(guest).Type)

	require.NoError(t, guest.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribe, Topic: support.EmployeeTopic}))
	f := read(guest)
	assert.Equal(t, realtime.FrameError, f.Type)
	assert.Equal(t, "forbidden", f.Code)

	require.NoError(t, guest.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribe, Topic: support.ConversationTopic(c.ID)}))
	assert.Equal(t, realtime.FrameSubscribed, read(guest).Type)

	emp, _, err := websocket.DefaultDialer.Dial(base+"?role=EMP&subject=emp-1", nil)
	require.NoError(t, err)
	defer emp.Close()
	read(emp)
	require.NoError(t, emp.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribe, Topic: support.EmployeeTopic}))
	assert.Equal(t, realtime.FrameSubscribed, read(emp).Type)

	w := s.do(http.MethodPost, "/conversations/"+c.ID+"/messages", "", "", map[string]string{"content": "ping"})
	require.Equal(t, http.StatusCreated, w.Code)

	ev := read(guest)
	assert.Equal(t, realtime.FrameEvent, ev.Type)
	var event support.Event
	require.NoError(t, json.Unmarshal(ev.Payload, &event))
	require.NotNil(t, event.Message)
	assert.Equal(t, "ping", event.Message.Content)

	notice := read(emp)
	assert.Equal(t, support.EmployeeTopic, notice.Topic)
	n, err := support.ParseNotice(notice.Payload)
	require.NoError(t, err)
	assert.Equal(t, c.ID, n.ConversationID)
}

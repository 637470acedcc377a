package main

import (
	"bytes"
	"context"
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
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	repoAdapter "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/adapter"
	supportHTTP "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/http"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

type routerPublisher struct{ router *realtime.Router }

func (p routerPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.router.Publish(topic, payload)
	return nil
}

func startAPI(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"SUPPORT_API_URL", "SUPPORT_WS_URL", "SUPPORT_TOKEN", "SUPPORT_ROLE", "SUPPORT_SUBJECT", "SUPPORT_TOKEN_FILE", "SUPPORT_POLL_INTERVAL", "SUPPORT_PAGE_SIZE"} {
		t.Setenv(k, "")
	}
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
	return ts.URL + "/api/v1/support"
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSupportctl_GuestToEmployeeRoundTrip(t *testing.T) {
	api := startAPI(t)
	tokenFile := filepath.Join(t.TempDir(), "guest-token")
	guest := []string{"--api-url", api, "--token-file", tokenFile}
	emp := []string{"--api-url", api, "--subject", "e1"}

	out, err := execute(t, append([]string{"widget", "send", "is the shop open today?"}, guest...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "sent message")

	out, err = execute(t, append([]string{"widget", "human"}, guest...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "responder: waiting")

	out, err = execute(t, append([]string{"queue", "--json"}, emp...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"status": "WAITING_EMP"`)
	id := conversationIDFrom(t, out)

	out, err = execute(t, append([]string{"reply", id, "hello"}, emp...)...)
	assert.ErrorContains(t, err, "claim it first", out)

	out, err = execute(t, append([]string{"claim", id}, emp...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "claimed "+id)

	out, err = execute(t, "claim", id, "--api-url", api, "--subject", "e2")
	assert.ErrorContains(t, err, `already handled by "e1"`, out)

	out, err = execute(t, append([]string{"mine"}, emp...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, id)

	out, err = execute(t, append([]string{"reply", id, "yes, until 9pm"}, emp...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "sent message")

	out, err = execute(t, append([]string{"widget", "history"}, guest...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "is the shop open today?")
	assert.Contains(t, out, "EMP:e1")
	assert.Contains(t, out, "yes, until 9pm")

	out, err = execute(t, append([]string{"search", "until 9pm"}, emp...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, id)

	out, err = execute(t, append([]string{"release", id, "--to", "WAITING_EMP"}, emp...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "released "+id+" to WAITING_EMP")

	_, err = execute(t, append([]string{"release", id, "--to", "EMP"}, emp...)...)
	assert.Error(t, err)
}

func TestSupportctl_ConsoleNeedsSubject(t *testing.T) {
	api := startAPI(t)
	_, err := execute(t, "queue", "--api-url", api)
	assert.ErrorContains(t, err, "employee id is required")
}

func TestSupportctl_Token(t *testing.T) {
	startAPI(t)
	out, err := execute(t, "token", "--secret", "s3cret", "--subject", "e7")
	require.NoError(t, err, out)

	actor, err := middleware.ParseToken("s3cret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, usecase.Employee("e7"), actor)
}

func conversationIDFrom(t *testing.T, out string) string {
	t.Helper()
	const key = `"id": "`
	i := strings.Index(out, key)
	require.GreaterOrEqual(t, i, 0, out)
	rest := out[i+len(key):]
	return rest[:strings.Index(rest, `"`)]
}

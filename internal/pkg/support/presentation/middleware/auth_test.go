package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(t *testing.T, secret string, req *http.Request) (int, usecase.Actor) {
	t.Helper()
	var got usecase.Actor
	r := gin.New()
	r.Use(Authenticate(secret))
	r.GET("/", func(c *gin.Context) {
		got = ActorFrom(c)
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code, got
}

func TestAuthenticate_JWT(t *testing.T) {
	token, err := IssueToken("s3cret", "emp-7", "EMP", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	code, actor := serve(t, "s3cret", req)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, usecase.Employee("emp-7"), actor)

	req = httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	_, actor = serve(t, "s3cret", req)
	assert.Equal(t, usecase.Employee("emp-7"), actor)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	wrongKey, err := IssueToken("other", "c1", "CUSTOMER", nil)
	require.NoError(t, err)
	expired, err := IssueToken("s3cret", "c1", "CUSTOMER", jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	unknownRole, err := IssueToken("s3cret", "c1", "WIZARD", nil)
	require.NoError(t, err)

	for _, tok := range []string{wrongKey, expired, unknownRole, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		code, _ := serve(t, "s3cret", req)
		assert.Equal(t, http.StatusUnauthorized, code)
	}
}

func TestAuthenticate_NoCredentialsIsGuest(t *testing.T) {
	code, actor := serve(t, "s3cret", httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, usecase.Guest(), actor)
}

func TestAuthenticate_DevHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRole, "customer")
	req.Header.Set(HeaderSubject, "cust-3")
	_, actor := serve(t, "", req)
	assert.Equal(t, usecase.Customer("cust-3"), actor)

	_, actor = serve(t, "", httptest.NewRequest(http.MethodGet, "/?role=EMP&subject=e1", nil))
	assert.Equal(t, usecase.Employee("e1"), actor)
}

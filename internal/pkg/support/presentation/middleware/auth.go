package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
)

const actorKey = "support.actor"

// Dev headers, honoured only when no JWT secret is configured.
const (
	HeaderRole    = "X-Support-Role"
	HeaderSubject = "X-Support-Subject"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Authenticate resolves the caller into a usecase.Actor. Requests without credentials are
// guests: the widget talks to the API before anyone logs in. Browsers cannot set headers on
// websocket upgrades, so the token is also read from the "token" query parameter.
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Set(actorKey, actorFromHeaders(c))
			c.Next()
			return
		}

		raw := bearer(c)
		if raw == "" {
			c.Set(actorKey, usecase.Guest())
			c.Next()
			return
		}
		actor, err := ParseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor set by Authenticate, or a guest.
func ActorFrom(c *gin.Context) usecase.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(usecase.Actor); ok {
			return a
		}
	}
	return usecase.Guest()
}

// ParseToken validates an HS256 token carrying user_id (or sub) and role claims.
func ParseToken(secret, raw string) (usecase.Actor, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return usecase.Actor{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return usecase.Actor{}, ErrInvalidToken
	}
	subject, _ := claims["user_id"].(string)
	if subject == "" {
		subject, _ = claims["sub"].(string)
	}
	role, _ := claims["role"].(string)
	actor, ok := actorFor(role, subject)
	if !ok {
		return usecase.Actor{}, ErrInvalidToken
	}
	return actor, nil
}

// IssueToken signs a token in the shape ParseToken accepts. Used by supportctl and tests.
func IssueToken(secret, subject, role string, claims jwt.MapClaims) (string, error) {
	mc := jwt.MapClaims{"user_id": subject, "role": role}
	for k, v := range claims {
		mc[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString([]byte(secret))
}

func actorFor(role, subject string) (usecase.Actor, bool) {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case "EMP", "EMPLOYEE", "ADMIN", "STAFF":
		if subject == "" {
			return usecase.Actor{}, false
		}
		return usecase.Employee(subject), true
	case "CUSTOMER", "USER":
		if subject == "" {
			return usecase.Actor{}, false
		}
		return usecase.Customer(subject), true
	case "", "GUEST":
		return usecase.Guest(), true
	}
	return usecase.Actor{}, false
}

func actorFromHeaders(c *gin.Context) usecase.Actor {
	role := c.GetHeader(HeaderRole)
	subject := c.GetHeader(HeaderSubject)
	if role == "" {
		role = c.Query("role")
		subject = c.Query("subject")
	}
	if a, ok := actorFor(role, subject); ok {
		return a
	}
	return usecase.Guest()
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

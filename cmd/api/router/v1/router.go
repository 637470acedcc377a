package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/realtime"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	supportHTTP "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/http"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, uc *usecase.Set, router *realtime.Router, opts supportHTTP.Options, deps map[string]Pinger) {
	v1 := r.Group("/api/v1")
	v1.GET("/health", health(deps))
	supportHTTP.RegisterRoutes(v1, uc, router, opts)
}

func health(deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = err.Error()
				continue
			}
			checks[name] = "OK"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	}
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/realtime"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/controller"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// Options configures the support routes.
type Options struct {
	JWTSecret   string
	AllowOrigin func(*http.Request) bool // websocket origin check; nil allows all
	Logger      *slog.Logger
}

// RegisterRoutes mounts the support API under g (/api/v1/support in production).
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, uc *usecase.Set, router *realtime.Router, opts Options) {
	s := g.Group("/support", middleware.Authenticate(opts.JWTSecret))

	s.POST("/conversations", controller.NewInitConversationController(uc.Init).Handle())
	s.GET("/customers/:customerId/conversations", controller.NewListCustomerConversationsController(uc.ListCustomer).Handle())
	s.GET("/conversations/:id/status", controller.NewGetConversationStatusController(uc.Status).Handle())
	s.GET("/conversations/:id/messages", controller.NewGetMessagesController(uc.Messages).Handle())
	s.POST("/conversations/:id/messages", controller.NewSendMessageController(uc.Send).Handle())
	s.POST("/conversations/:id/claim", controller.NewClaimConversationController(uc.Claim).Handle())
	s.POST("/conversations/:id/release", controller.NewReleaseConversationController(uc.Release).Handle())
	s.POST("/conversations/:id/escalate", controller.NewEscalateConversationController(uc.Escalate).Handle())
	s.POST("/conversations/:id/read", controller.NewMarkConversationReadController(uc.MarkRead).Handle())
	s.GET("/employee/conversations", controller.NewListEmployeeConversationsController(uc.ListEmployee).Handle())

	// GET /api/v1/support/ws -> push channel
	s.GET("/ws", controller.NewSupportSocketController(router, uc.Status, opts.AllowOrigin, opts.Logger).Handle())
}

package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// EscalateConversationController handles POST /conversations/:id/escalate.
type EscalateConversationController struct {
	UC *usecase.EscalateConversationUseCase
}

func NewEscalateConversationController(uc *usecase.EscalateConversationUseCase) *EscalateConversationController {
	return &EscalateConversationController{UC: uc}
}

func (h *EscalateConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.EscalateConversationInput{
			Actor:          middleware.ActorFrom(c),
			ConversationID: c.Param("id"),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// GetConversationStatusController handles GET /conversations/:id/status.
type GetConversationStatusController struct {
	UC *usecase.GetConversationStatusUseCase
}

func NewGetConversationStatusController(uc *usecase.GetConversationStatusUseCase) *GetConversationStatusController {
	return &GetConversationStatusController{UC: uc}
}

func (h *GetConversationStatusController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		st, err := h.UC.Execute(ctx, usecase.GetConversationStatusInput{
			Actor:          middleware.ActorFrom(c),
			ConversationID: c.Param("id"),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

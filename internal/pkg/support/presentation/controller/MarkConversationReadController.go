package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// MarkConversationReadController handles POST /conversations/:id/read.
type MarkConversationReadController struct {
	UC *usecase.MarkConversationReadUseCase
}

func NewMarkConversationReadController(uc *usecase.MarkConversationReadUseCase) *MarkConversationReadController {
	return &MarkConversationReadController{UC: uc}
}

func (h *MarkConversationReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		err := h.UC.Execute(ctx, usecase.MarkConversationReadInput{
			Actor:          middleware.ActorFrom(c),
			ConversationID: c.Param("id"),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

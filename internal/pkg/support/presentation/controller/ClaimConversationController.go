package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// ClaimConversationController handles POST /conversations/:id/claim; 409 means another employee won.
type ClaimConversationController struct {
	UC *usecase.ClaimConversationUseCase
}

func NewClaimConversationController(uc *usecase.ClaimConversationUseCase) *ClaimConversationController {
	return &ClaimConversationController{UC: uc}
}

func (h *ClaimConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.ClaimConversationInput{
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

package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// ReleaseConversationController handles POST /conversations/:id/release with an optional {"to": ...}.
type ReleaseConversationController struct {
	UC *usecase.ReleaseConversationUseCase
}

func NewReleaseConversationController(uc *usecase.ReleaseConversationUseCase) *ReleaseConversationController {
	return &ReleaseConversationController{UC: uc}
}

type releaseConversationRequest struct {
	To support.Status `json:"to"`
}

func (h *ReleaseConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req releaseConversationRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.ReleaseConversationInput{
			Actor:          middleware.ActorFrom(c),
			ConversationID: c.Param("id"),
			To:             req.To,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

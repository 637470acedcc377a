package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// InitConversationController handles POST /conversations.
type InitConversationController struct {
	UC *usecase.InitConversationUseCase
}

func NewInitConversationController(uc *usecase.InitConversationUseCase) *InitConversationController {
	return &InitConversationController{UC: uc}
}

type initConversationRequest struct {
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
}

func (h *InitConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req initConversationRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.InitConversationInput{
			Actor:         middleware.ActorFrom(c),
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, conv)
	}
}

package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// ListEmployeeConversationsController handles GET /employee/conversations.
type ListEmployeeConversationsController struct {
	UC *usecase.ListEmployeeConversationsUseCase
}

func NewListEmployeeConversationsController(uc *usecase.ListEmployeeConversationsUseCase) *ListEmployeeConversationsController {
	return &ListEmployeeConversationsController{UC: uc}
}

func (h *ListEmployeeConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		convs, err := h.UC.Execute(ctx, usecase.ListEmployeeConversationsInput{Actor: middleware.ActorFrom(c)})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, convs)
	}
}

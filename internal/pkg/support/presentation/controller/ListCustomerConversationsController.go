package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// ListCustomerConversationsController handles GET /customers/:customerId/conversations.
type ListCustomerConversationsController struct {
	UC *usecase.ListCustomerConversationsUseCase
}

func NewListCustomerConversationsController(uc *usecase.ListCustomerConversationsUseCase) *ListCustomerConversationsController {
	return &ListCustomerConversationsController{UC: uc}
}

func (h *ListCustomerConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		ids, err := h.UC.Execute(ctx, usecase.ListCustomerConversationsInput{
			Actor:      middleware.ActorFrom(c),
			CustomerID: c.Param("customerId"),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ids)
	}
}

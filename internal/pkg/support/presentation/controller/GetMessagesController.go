package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// GetMessagesController handles GET /conversations/:id/messages?beforeId=&size=.
type GetMessagesController struct {
	UC *usecase.GetMessagesUseCase
}

func NewGetMessagesController(uc *usecase.GetMessagesUseCase) *GetMessagesController {
	return &GetMessagesController{UC: uc}
}

func (h *GetMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			beforeID int64
			size     int
			err      error
		)
		if v := c.Query("beforeId"); v != "" {
			if beforeID, err = strconv.ParseInt(v, 10, 64); err != nil || beforeID < 0 {
				badRequest(c, "beforeId must be a non-negative integer")
				return
			}
		}
		if v := c.Query("size"); v != "" {
			if size, err = strconv.Atoi(v); err != nil || size <= 0 {
				badRequest(c, "size must be a positive integer")
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		page, err := h.UC.Execute(ctx, usecase.GetMessagesInput{
			Actor:          middleware.ActorFrom(c),
			ConversationID: c.Param("id"),
			BeforeID:       beforeID,
			Size:           size,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

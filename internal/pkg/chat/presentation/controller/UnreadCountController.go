package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// UnreadCountController handles GET /messages/unread-count
type UnreadCountController struct {
	UC      *usecase.UnreadCountUseCase
	Timeout time.Duration
}

func NewUnreadCountController(uc *usecase.UnreadCountUseCase, timeout time.Duration) *UnreadCountController {
	return &UnreadCountController{UC: uc, Timeout: timeout}
}

func (h *UnreadCountController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		n, err := h.UC.Execute(ctx, who)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

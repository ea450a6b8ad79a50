package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// MarkReadController handles POST /conversations/:conversationId/read
type MarkReadController struct {
	UC      *usecase.MarkReadUseCase
	Timeout time.Duration
}

func NewMarkReadController(uc *usecase.MarkReadUseCase, timeout time.Duration) *MarkReadController {
	return &MarkReadController{UC: uc, Timeout: timeout}
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		res, err := h.UC.Execute(ctx, usecase.MarkReadInput{Actor: who, ConversationID: c.Param("conversationId")})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"conversationId": res.ConversationID,
			"readAt":         res.ReadAt,
			"updated":        res.Updated,
		})
	}
}

package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/delivery"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// GetMessageController handles fetching a page of a conversation (one controller per endpoint)
type GetMessageController struct {
	UC      *usecase.GetMessageUseCase
	Timeout time.Duration
}

func NewGetMessageController(uc *usecase.GetMessageUseCase, timeout time.Duration) *GetMessageController {
	return &GetMessageController{UC: uc, Timeout: timeout}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		conversationID := c.Param("conversationId")

		var limit, offset int
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
				return
			}
			limit = n
		}
		if v := c.Query("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
				return
			}
			offset = n
		}
		in := usecase.GetMessageInput{Actor: who, ConversationID: conversationID, Limit: limit, Offset: offset}
		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()

		page, err := h.UC.Execute(ctx, in)
		if err != nil {
			writeError(c, err)
			return
		}

		out := make([]delivery.MessagePayload, 0, len(page.Messages))
		for _, m := range page.Messages {
			out = append(out, delivery.NewMessagePayload(m))
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": out,
			"total":    page.Total,
			"limit":    page.Limit,
			"offset":   page.Offset,
		})
	}
}

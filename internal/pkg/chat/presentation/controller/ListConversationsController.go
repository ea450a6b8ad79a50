package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// ListConversationsController handles GET /conversations
type ListConversationsController struct {
	UC      *usecase.ListConversationsUseCase
	Timeout time.Duration
}

func NewListConversationsController(uc *usecase.ListConversationsUseCase, timeout time.Duration) *ListConversationsController {
	return &ListConversationsController{UC: uc, Timeout: timeout}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		convs, err := h.UC.Execute(ctx, who)
		if err != nil {
			writeError(c, err)
			return
		}

		out := make([]conversationPayload, 0, len(convs))
		for _, conv := range convs {
			out = append(out, toConversationPayload(conv))
		}
		c.JSON(http.StatusOK, gin.H{"conversations": out})
	}
}

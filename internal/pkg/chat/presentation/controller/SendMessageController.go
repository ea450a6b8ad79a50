package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/360john360/childnur-sub000/internal/infrastructure/metrics"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/delivery"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC      *usecase.SendMessageUseCase
	Metrics *metrics.Metrics
	Timeout time.Duration
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, m *metrics.Metrics, timeout time.Duration) *SendMessageController {
	return &SendMessageController{UC: uc, Metrics: m, Timeout: timeout}
}

// sendMessageRequest is the DTO for the HTTP request body; the websocket
// send_message frame carries the same fields.
type sendMessageRequest struct {
	Content         string            `json:"content"`
	AttachmentRefs  []chat.Attachment `json:"attachmentRefs"`
	ClientMessageID *string           `json:"clientMessageId"`
}

// Handle returns a gin handler that stores and routes a message
func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		conversationID := c.Param("conversationId")

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := usecase.SendMessageInput{
			Actor:           who,
			ConversationID:  conversationID,
			Body:            req.Content,
			Attachments:     req.AttachmentRefs,
			ClientMessageID: req.ClientMessageID,
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		res, err := h.UC.Execute(ctx, in)
		if err != nil {
			writeError(c, err)
			return
		}

		status := http.StatusCreated
		if res.Duplicate {
			status = http.StatusOK
		} else {
			h.Metrics.Stored("http")
		}
		c.JSON(status, delivery.NewMessagePayload(res.Message))
	}
}

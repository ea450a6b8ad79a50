package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	queueport "github.com/360john360/childnur-sub000/internal/infrastructure/queue/port"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/task"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

const enqueueMaxRetry = 20

// EnqueueMessageController accepts a message for background delivery through
// the queue worker (one controller per endpoint)
type EnqueueMessageController struct {
	Q       queueport.Client
	Access  *usecase.JoinConversationUseCase
	Timeout time.Duration
}

func NewEnqueueMessageController(client queueport.Client, access *usecase.JoinConversationUseCase, timeout time.Duration) *EnqueueMessageController {
	return &EnqueueMessageController{Q: client, Access: access, Timeout: timeout}
}

// Handle returns a gin handler that enqueues a background task to send a message
func (h *EnqueueMessageController) Handle() gin.HandlerFunc {
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
		if req.ClientMessageID == nil || strings.TrimSpace(*req.ClientMessageID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "clientMessageId is required"})
			return
		}
		if strings.TrimSpace(req.Content) == "" && len(req.AttachmentRefs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message has no content"})
			return
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()

		// The worker has no caller to report to, so access is settled here.
		if _, err := h.Access.Execute(ctx, usecase.JoinConversationInput{Actor: who, ConversationID: conversationID}); err != nil {
			writeError(c, err)
			return
		}

		payload := task.SendMessageTaskPayload{
			SenderID:        who.UserID,
			TenantID:        who.TenantID,
			Supervisor:      who.Supervisor,
			ConversationID:  conversationID,
			Content:         req.Content,
			AttachmentRefs:  req.AttachmentRefs,
			ClientMessageID: strings.TrimSpace(*req.ClientMessageID),
		}
		t, err := task.NewSendMessageTask(payload)
		if err != nil {
			writeError(c, err)
			return
		}

		opts := queueport.EnqueueOption{Queue: task.QueueName, MaxRetry: enqueueMaxRetry, TaskID: payload.TaskID()}
		id, err := h.Q.Enqueue(ctx, t, opts)
		switch {
		case errors.Is(err, queueport.ErrDuplicateTask):
			id = payload.TaskID()
		case err != nil:
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue message"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":          "queued",
			"taskId":          id,
			"conversationId":  conversationID,
			"clientMessageId": payload.ClientMessageID,
		})
	}
}

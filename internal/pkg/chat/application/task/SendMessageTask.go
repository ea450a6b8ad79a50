package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/360john360/childnur-sub000/internal/infrastructure/metrics"
	qport "github.com/360john360/childnur-sub000/internal/infrastructure/queue/port"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// SendMessageTaskType is the queue task name for sending a message within the chat domain.
const SendMessageTaskType = "chat:send_message"

// QueueName is the asynq queue chat tasks are enqueued on.
const QueueName = "chat"

const taskTimeout = 10 * time.Second

// SendMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types so queued tasks survive domain refactors.
type SendMessageTaskPayload struct {
	SenderID        string            `json:"senderId"`
	TenantID        string            `json:"tenantId"`
	Supervisor      bool              `json:"supervisor,omitempty"`
	ConversationID  string            `json:"conversationId"`
	Content         string            `json:"content"`
	AttachmentRefs  []chat.Attachment `json:"attachmentRefs,omitempty"`
	ClientMessageID string            `json:"clientMessageId"`
}

// TaskID is the queue-level uniqueness key; together with the store's
// client message id it keeps a re-enqueued send from being stored twice.
func (p SendMessageTaskPayload) TaskID() string {
	return strings.Join([]string{"send", p.ConversationID, p.SenderID, p.ClientMessageID}, ":")
}

func (p SendMessageTaskPayload) input() usecase.SendMessageInput {
	key := p.ClientMessageID
	return usecase.SendMessageInput{
		Actor:           chat.Actor{UserID: p.SenderID, TenantID: p.TenantID, Supervisor: p.Supervisor},
		ConversationID:  p.ConversationID,
		Body:            p.Content,
		Attachments:     p.AttachmentRefs,
		ClientMessageID: &key,
	}
}

// NewSendMessageTask encodes the payload into a queue task.
func NewSendMessageTask(p SendMessageTaskPayload) (qport.Task, error) {
	if strings.TrimSpace(p.ClientMessageID) == "" {
		return qport.Task{}, fmt.Errorf("%w: clientMessageId is required for queued sends", chat.ErrInvalidInput)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return qport.Task{}, err
	}
	return qport.Task{Type: SendMessageTaskType, Payload: b}, nil
}

// Sender is the part of SendMessageUseCase the worker needs.
type Sender interface {
	Execute(ctx context.Context, in usecase.SendMessageInput) (*usecase.SendMessageResult, error)
}

// RegisterSendMessageTask binds the task handler to the provided server.
// The handler runs the same send use case as the realtime and HTTP paths.
func RegisterSendMessageTask(srv qport.Server, uc Sender, m *metrics.Metrics, log *zap.Logger) {
	srv.Register(SendMessageTaskType, SendMessageHandler(uc, m, log))
}

// SendMessageHandler returns the queue handler for SendMessageTaskType.
func SendMessageHandler(uc Sender, m *metrics.Metrics, log *zap.Logger) qport.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, t qport.Task) error {
		var p SendMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return fmt.Errorf("%w: decode payload: %v", qport.ErrPermanent, err)
		}

		ctx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()

		res, err := uc.Execute(ctx, p.input())
		if err != nil {
			// Only persistence failures are worth another attempt.
			if !errors.Is(err, usecase.ErrPersistence) {
				log.Warn("dropping queued message",
					zap.String("conversation_id", p.ConversationID),
					zap.String("sender_id", p.SenderID),
					zap.Error(err))
				return fmt.Errorf("%w: %v", qport.ErrPermanent, err)
			}
			return err
		}
		if !res.Duplicate {
			m.Stored("queue")
		}
		return nil
	}
}

package usecase

import (
	"context"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new message
type SendMessageInput struct {
	Actor           chat.Actor
	ConversationID  string
	Body            string
	Attachments     []chat.Attachment
	ClientMessageID *string
}

// SendMessageResult is the stored message. Duplicate is set when the
// client message id matched an earlier send; such repeats are not fanned out again.
type SendMessageResult struct {
	Message      chat.Message
	Conversation chat.Conversation
	Duplicate    bool
}

// SendMessageUseCase is the single append-then-route sequence shared by the
// websocket, HTTP and queued entry points.
type SendMessageUseCase struct {
	Repo     repository.ChatRepository
	Notifier Notifier
	Now      func() time.Time
}

func NewSendMessageUseCase(repo repository.ChatRepository, notifier Notifier) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Notifier: notifier, Now: time.Now}
}

// Execute validates, persists and routes a new message.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	draft, err := chat.NewMessage(chat.Message{
		ConversationID:  in.ConversationID,
		SenderID:        in.Actor.UserID,
		Body:            in.Body,
		Attachments:     in.Attachments,
		ClientMessageID: in.ClientMessageID,
	})
	if err != nil {
		return nil, err
	}

	conv, err := loadVisible(ctx, uc.Repo, in.Actor, in.ConversationID)
	if err != nil {
		return nil, err
	}

	msg, duplicate, err := uc.Repo.AppendMessage(ctx, *draft, uc.Now())
	if err != nil {
		return nil, wrapRepoError(err)
	}
	conv.LastActivityAt = msg.CreatedAt

	if !duplicate && uc.Notifier != nil {
		uc.Notifier.RouteNewMessage(ctx, msg, conv)
	}
	return &SendMessageResult{Message: msg, Conversation: conv, Duplicate: duplicate}, nil
}

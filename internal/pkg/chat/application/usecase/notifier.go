package usecase

import (
	"context"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

// Notifier fans accepted changes out to live channels. Implementations are
// best-effort and never report delivery failures back to the caller.
type Notifier interface {
	RouteNewMessage(ctx context.Context, msg chat.Message, conv chat.Conversation)
	RouteReadReceipt(ctx context.Context, conv chat.Conversation, readerID string, otherParticipantID string, readAt time.Time)
}

// loadVisible fetches a conversation the actor may view; other tenants'
// conversations are reported as not found.
func loadVisible(ctx context.Context, repo repository.ChatRepository, actor chat.Actor, conversationID string) (chat.Conversation, error) {
	conv, err := repo.GetConversation(ctx, actor.TenantID, conversationID)
	if err != nil {
		return chat.Conversation{}, wrapRepoError(err)
	}
	if !conv.CanView(actor) {
		return chat.Conversation{}, chat.ErrNotParticipant
	}
	return conv, nil
}

package usecase

import (
	"context"
	"fmt"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

// JoinConversationInput validates a request to attach a user session to a conversation.
type JoinConversationInput struct {
	Actor          chat.Actor
	ConversationID string
}

// JoinConversationUseCase ensures the caller may observe the conversation
// before its channel joins the realtime group.
type JoinConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewJoinConversationUseCase(repo repository.ChatRepository) *JoinConversationUseCase {
	return &JoinConversationUseCase{Repo: repo}
}

func (uc *JoinConversationUseCase) Execute(ctx context.Context, in JoinConversationInput) (chat.Conversation, error) {
	if in.ConversationID == "" {
		return chat.Conversation{}, fmt.Errorf("%w: conversationId is required", chat.ErrInvalidInput)
	}
	return loadVisible(ctx, uc.Repo, in.Actor, in.ConversationID)
}

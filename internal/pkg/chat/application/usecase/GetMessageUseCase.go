package usecase

import (
	"context"
	"fmt"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// GetMessageInput carries parameters to fetch messages of a conversation
type GetMessageInput struct {
	Actor          chat.Actor
	ConversationID string
	Limit          int
	Offset         int
}

// GetMessageUseCase fetches one page of a conversation's history.
type GetMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessageUseCase(repo repository.ChatRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

// Execute returns messages oldest to newest within the page, with the full count.
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) (chat.Page, error) {
	if in.ConversationID == "" {
		return chat.Page{}, fmt.Errorf("%w: conversationId is required", chat.ErrInvalidInput)
	}
	if _, err := loadVisible(ctx, uc.Repo, in.Actor, in.ConversationID); err != nil {
		return chat.Page{}, err
	}

	limit, offset := in.Limit, in.Offset
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	page, err := uc.Repo.GetMessagesByConversation(ctx, in.ConversationID, limit, offset)
	if err != nil {
		return chat.Page{}, wrapRepoError(err)
	}
	page.Limit, page.Offset = limit, offset
	return page, nil
}

package usecase

import (
	"context"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

// ListConversationsUseCase lists the caller's conversations. Supervisors
// see the whole tenant.
type ListConversationsUseCase struct {
	Repo repository.ChatRepository
}

func NewListConversationsUseCase(repo repository.ChatRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, actor chat.Actor) ([]chat.Conversation, error) {
	convs, err := uc.Repo.ListConversations(ctx, actor.TenantID, actor.UserID, actor.Supervisor)
	if err != nil {
		return nil, wrapRepoError(err)
	}
	return convs, nil
}

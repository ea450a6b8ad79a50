package usecase

import (
	"context"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

type UnreadCountUseCase struct {
	Repo repository.ChatRepository
}

func NewUnreadCountUseCase(repo repository.ChatRepository) *UnreadCountUseCase {
	return &UnreadCountUseCase{Repo: repo}
}

// Execute counts unread messages addressed to the actor across the tenant.
func (uc *UnreadCountUseCase) Execute(ctx context.Context, actor chat.Actor) (int, error) {
	n, err := uc.Repo.UnreadCount(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return 0, wrapRepoError(err)
	}
	return n, nil
}

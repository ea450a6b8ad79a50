package usecase

import (
	"context"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

type MarkReadInput struct {
	Actor          chat.Actor
	ConversationID string
}

// MarkReadUseCase marks the other side's messages read and notifies them.
// Only participants read; a supervisor observing does not clear anyone's unread state.
type MarkReadUseCase struct {
	Repo     repository.ChatRepository
	Notifier Notifier
	Now      func() time.Time
}

func NewMarkReadUseCase(repo repository.ChatRepository, notifier Notifier) *MarkReadUseCase {
	return &MarkReadUseCase{Repo: repo, Notifier: notifier, Now: time.Now}
}

func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (chat.ReadResult, error) {
	conv, err := uc.Repo.GetConversation(ctx, in.Actor.TenantID, in.ConversationID)
	if err != nil {
		return chat.ReadResult{}, wrapRepoError(err)
	}
	if !conv.HasParticipant(in.Actor.UserID) {
		return chat.ReadResult{}, chat.ErrNotParticipant
	}

	readAt := uc.Now().UTC()
	updated, err := uc.Repo.MarkRead(ctx, conv.ID, in.Actor.UserID, readAt)
	if err != nil {
		return chat.ReadResult{}, wrapRepoError(err)
	}

	res := chat.ReadResult{
		ConversationID:     conv.ID,
		OtherParticipantID: conv.OtherParticipant(in.Actor.UserID),
		ReadAt:             readAt,
		Updated:            updated,
	}
	if updated > 0 && uc.Notifier != nil {
		uc.Notifier.RouteReadReceipt(ctx, conv, in.Actor.UserID, res.OtherParticipantID, readAt)
	}
	return res, nil
}

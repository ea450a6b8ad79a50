package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

// GetOrCreateConversationInput names the staff/guardian pair and optional child.
type GetOrCreateConversationInput struct {
	Actor      chat.Actor
	StaffID    string
	GuardianID string
	ChildID    *string
}

// GetOrCreateConversationUseCase opens (or reopens) the conversation for a tuple.
type GetOrCreateConversationUseCase struct {
	Repo      repository.ChatRepository
	Directory repository.DirectoryRepository
	Now       func() time.Time
}

func NewGetOrCreateConversationUseCase(repo repository.ChatRepository, dir repository.DirectoryRepository) *GetOrCreateConversationUseCase {
	return &GetOrCreateConversationUseCase{Repo: repo, Directory: dir, Now: time.Now}
}

// Execute returns the conversation and whether it was created by this call.
func (uc *GetOrCreateConversationUseCase) Execute(ctx context.Context, in GetOrCreateConversationInput) (*chat.Conversation, bool, error) {
	staffID := strings.TrimSpace(in.StaffID)
	guardianID := strings.TrimSpace(in.GuardianID)
	if staffID == "" || guardianID == "" || staffID == guardianID {
		return nil, false, fmt.Errorf("%w: staffId and guardianId must be two different users", chat.ErrInvalidInput)
	}
	var childID *string
	if in.ChildID != nil {
		if c := strings.TrimSpace(*in.ChildID); c != "" {
			childID = &c
		}
	}

	if !in.Actor.Supervisor && in.Actor.UserID != staffID && in.Actor.UserID != guardianID {
		return nil, false, chat.ErrNotParticipant
	}

	for _, uid := range []string{staffID, guardianID} {
		if _, err := uc.Directory.GetProfile(ctx, in.Actor.TenantID, uid); err != nil {
			return nil, false, wrapRepoError(err)
		}
	}
	if childID != nil {
		ok, err := uc.Directory.ChildExists(ctx, in.Actor.TenantID, *childID)
		if err != nil {
			return nil, false, wrapRepoError(err)
		}
		if !ok {
			return nil, false, fmt.Errorf("%w: child %s", chat.ErrNotFound, *childID)
		}
	}

	key := chat.ConversationKey{TenantID: in.Actor.TenantID, StaffID: staffID, GuardianID: guardianID, ChildID: childID}
	conv, created, err := uc.Repo.GetOrCreateConversation(ctx, key, uc.Now())
	if err != nil {
		return nil, false, wrapRepoError(err)
	}
	return &conv, created, nil
}

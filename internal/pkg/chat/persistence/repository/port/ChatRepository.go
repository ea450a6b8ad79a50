package repository

import (
	"context"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
)

// ChatRepository defines persistence operations for conversations and messages.
// Lookups that find nothing return an error wrapping chat.ErrNotFound.
type ChatRepository interface {
	// GetOrCreateConversation returns the conversation for key, creating it
	// with LastActivityAt = now if absent. created reports which happened.
	// Implementations must stay correct under concurrent calls for one key.
	GetOrCreateConversation(ctx context.Context, key chat.ConversationKey, now time.Time) (conv chat.Conversation, created bool, err error)

	// GetConversation loads a conversation within a tenant.
	GetConversation(ctx context.Context, tenantID string, conversationID string) (chat.Conversation, error)

	// ListConversations returns the tenant's conversations ordered by last
	// activity, newest first; all=false restricts them to participantID.
	ListConversations(ctx context.Context, tenantID string, participantID string, all bool) ([]chat.Conversation, error)

	// AppendMessage stores m and advances the conversation's last activity
	// atomically. CreatedAt is assigned by the store. When m carries a
	// ClientMessageID already used by the same sender in the conversation,
	// the stored original is returned with duplicate=true.
	AppendMessage(ctx context.Context, m chat.Message, now time.Time) (stored chat.Message, duplicate bool, err error)

	// GetMessagesByConversation returns a window over the history, newest
	// first in storage, returned oldest to newest, with the full count.
	// Callers pass limit > 0 and offset >= 0.
	GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) (chat.Page, error)

	// MarkRead sets ReadAt on unread messages not sent by readerID and reports how many changed.
	MarkRead(ctx context.Context, conversationID string, readerID string, readAt time.Time) (int, error)

	// UnreadCount counts messages addressed to userID that are still unread, tenant-wide.
	UnreadCount(ctx context.Context, tenantID string, userID string) (int, error)
}

// DirectoryRepository is read-only access to user and child records owned
// by the rest of the platform.
type DirectoryRepository interface {
	GetProfile(ctx context.Context, tenantID string, userID string) (chat.Profile, error)
	ChildExists(ctx context.Context, tenantID string, childID string) (bool, error)
}

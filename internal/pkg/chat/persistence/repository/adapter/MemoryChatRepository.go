package adapter

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"

	"github.com/google/uuid"
)

// MemoryChatRepository is a process-local ChatRepository for development
// (STORE_DRIVER=memory) and tests. One mutex serializes every write, which
// gives the same guarantees the Postgres adapter gets from row locks and
// unique indexes.
type MemoryChatRepository struct {
	mu            sync.RWMutex
	conversations map[string]*chat.Conversation // id -> conversation
	byKey         map[string]string             // tupleKey -> id
	messages      map[string][]*chat.Message    // conversationID -> insertion order
}

var _ repository.ChatRepository = (*MemoryChatRepository)(nil)

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		conversations: make(map[string]*chat.Conversation),
		byKey:         make(map[string]string),
		messages:      make(map[string][]*chat.Message),
	}
}

// tupleKey flattens the uniqueness tuple; an absent child maps to "".
func tupleKey(k chat.ConversationKey) string {
	return strings.Join([]string{k.TenantID, k.StaffID, k.GuardianID, k.Child()}, "\x00")
}

func (r *MemoryChatRepository) GetOrCreateConversation(_ context.Context, key chat.ConversationKey, now time.Time) (chat.Conversation, bool, error) {
	k := tupleKey(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[k]; ok {
		return copyConversation(r.conversations[id]), false, nil
	}

	now = now.UTC()
	c := &chat.Conversation{
		ID:             uuid.NewString(),
		TenantID:       key.TenantID,
		StaffID:        key.StaffID,
		GuardianID:     key.GuardianID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if child := key.Child(); child != "" {
		c.ChildID = &child
	}
	r.conversations[c.ID] = c
	r.byKey[k] = c.ID
	return copyConversation(c), true, nil
}

func (r *MemoryChatRepository) GetConversation(_ context.Context, tenantID string, conversationID string) (chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[conversationID]
	if !ok || c.TenantID != tenantID {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return copyConversation(c), nil
}

func (r *MemoryChatRepository) ListConversations(_ context.Context, tenantID string, participantID string, all bool) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chat.Conversation, 0)
	for _, c := range r.conversations {
		if c.TenantID != tenantID {
			continue
		}
		if !all && !c.HasParticipant(participantID) {
			continue
		}
		out = append(out, copyConversation(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryChatRepository) AppendMessage(_ context.Context, m chat.Message, now time.Time) (chat.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[m.ConversationID]
	if !ok {
		return chat.Message{}, false, chat.ErrNotFound
	}

	if m.ClientMessageID != nil {
		for _, existing := range r.messages[c.ID] {
			if existing.SenderID == m.SenderID && existing.ClientMessageID != nil && *existing.ClientMessageID == *m.ClientMessageID {
				return copyMessage(existing), true, nil
			}
		}
	}

	m.ID = uuid.NewString()
	m.CreatedAt = c.Stamp(now)
	m.ReadAt = nil
	m.Attachments = append([]chat.Attachment{}, m.Attachments...)
	if m.ClientMessageID != nil {
		key := *m.ClientMessageID
		m.ClientMessageID = &key
	}

	stored := m
	r.messages[c.ID] = append(r.messages[c.ID], &stored)
	c.LastActivityAt = m.CreatedAt
	return copyMessage(&stored), false, nil
}

func (r *MemoryChatRepository) GetMessagesByConversation(_ context.Context, conversationID string, limit int, offset int) (chat.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]
	total := len(all)

	// Window over newest-first order, then flip back to oldest-first.
	newest := min(total-1-offset, total-1)
	out := make([]chat.Message, 0, max(limit, 0))
	for i := newest; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyMessage(all[i]))
	}
	reverse(out)
	return chat.Page{Messages: out, Total: total}, nil
}

func (r *MemoryChatRepository) MarkRead(_ context.Context, conversationID string, readerID string, readAt time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[conversationID]; !ok {
		return 0, chat.ErrNotFound
	}

	readAt = readAt.UTC()
	updated := 0
	for _, m := range r.messages[conversationID] {
		if m.SenderID == readerID || m.ReadAt != nil {
			continue
		}
		at := readAt
		m.ReadAt = &at
		updated++
	}
	return updated, nil
}

func (r *MemoryChatRepository) UnreadCount(_ context.Context, tenantID string, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for id, c := range r.conversations {
		if c.TenantID != tenantID || !c.HasParticipant(userID) {
			continue
		}
		for _, m := range r.messages[id] {
			if m.SenderID != userID && m.ReadAt == nil {
				n++
			}
		}
	}
	return n, nil
}

func copyConversation(c *chat.Conversation) chat.Conversation {
	out := *c
	if c.ChildID != nil {
		child := *c.ChildID
		out.ChildID = &child
	}
	return out
}

func copyMessage(m *chat.Message) chat.Message {
	out := *m
	out.Attachments = append([]chat.Attachment{}, m.Attachments...)
	if m.ReadAt != nil {
		at := *m.ReadAt
		out.ReadAt = &at
	}
	if m.ClientMessageID != nil {
		key := *m.ClientMessageID
		out.ClientMessageID = &key
	}
	return out
}

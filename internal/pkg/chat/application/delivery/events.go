package delivery

import (
	"encoding/json"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
)

// Server-to-client event types.
const (
	EventMessageReceived = "message_received"
	EventUserTyping      = "user_typing"
	EventMessagesRead    = "messages_read"
)

// MessagePayload is the wire form of a message, shared by the realtime
// events and the HTTP responses so both paths show identical state.
type MessagePayload struct {
	ID              string            `json:"id"`
	ConversationID  string            `json:"conversationId"`
	SenderID        string            `json:"senderId"`
	Content         string            `json:"content"`
	AttachmentRefs  []chat.Attachment `json:"attachmentRefs"`
	CreatedAt       time.Time         `json:"createdAt"`
	ReadAt          *time.Time        `json:"readAt"`
	ClientMessageID *string           `json:"clientMessageId,omitempty"`
}

func NewMessagePayload(m chat.Message) MessagePayload {
	refs := m.Attachments
	if refs == nil {
		refs = []chat.Attachment{}
	}
	return MessagePayload{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Content:         m.Body,
		AttachmentRefs:  refs,
		CreatedAt:       m.CreatedAt,
		ReadAt:          m.ReadAt,
		ClientMessageID: m.ClientMessageID,
	}
}

type MessageReceivedEvent struct {
	Type    string         `json:"type"`
	Message MessagePayload `json:"message"`
}

type UserTypingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type MessagesReadEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

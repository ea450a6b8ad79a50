package chat

import (
	"strings"
	"time"
)

// Attachment is an opaque descriptor produced by the file-processing
// service. This package only stores and forwards it.
type Attachment struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Size         int64  `json:"size"`
	Kind         string `json:"kind"`
}

// Message is an immutable log entry in a conversation. Only ReadAt changes,
// once, when the non-sending participant reads it.
type Message struct {
	ID              string       `db:"id"`
	ConversationID  string       `db:"conversation_id"`
	SenderID        string       `db:"sender_id"`
	Body            string       `db:"body"`
	Attachments     []Attachment `db:"attachments"`
	CreatedAt       time.Time    `db:"created_at"`
	ReadAt          *time.Time   `db:"read_at"`
	ClientMessageID *string      `db:"client_message_id"`
}

// NewMessage validates and normalizes a message draft before persistence.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, ErrInvalidInput
	}

	m.Body = strings.TrimSpace(m.Body)

	attachments := make([]Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		if strings.TrimSpace(a.URL) == "" {
			return nil, ErrInvalidInput
		}
		attachments = append(attachments, a)
	}
	m.Attachments = attachments

	if m.Body == "" && len(m.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}

	if m.ClientMessageID != nil {
		key := strings.TrimSpace(*m.ClientMessageID)
		if key == "" {
			m.ClientMessageID = nil
		} else {
			m.ClientMessageID = &key
		}
	}

	m.ReadAt = nil
	return &m, nil
}

// Page is a window of messages ordered oldest to newest, plus the size of
// the full history. Limit and Offset echo the effective window.
type Page struct {
	Messages []Message
	Total    int
	Limit    int
	Offset   int
}

// ReadResult describes the outcome of marking a conversation read.
type ReadResult struct {
	ConversationID     string
	OtherParticipantID string
	ReadAt             time.Time
	Updated            int
}

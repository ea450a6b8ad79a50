package chat

import "errors"

// Domain-level errors for chat behaviors
var (
	ErrNotFound       = errors.New("chat: not found")
	ErrNotParticipant = errors.New("chat: caller is not a participant in the conversation")
	ErrEmptyMessage   = errors.New("chat: empty message (no body or attachment)")
	ErrInvalidInput   = errors.New("chat: invalid input")
)

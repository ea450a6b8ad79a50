package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/360john360/childnur-sub000/internal/infrastructure/auth"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
)

const defaultRequestTimeout = 5 * time.Second

// statusFor maps use case errors onto HTTP status codes; anything
// unrecognized, usecase.ErrPersistence included, is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {"error": ...}. Internal failures do not leak details.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// actor reads the caller placed on the context by auth.Middleware.
func actor(c *gin.Context) (chat.Actor, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return chat.Actor{}, false
	}
	return chat.Actor{UserID: id.UserID, TenantID: id.TenantID, Supervisor: id.Supervisor}, true
}

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// conversationPayload is the wire form of a conversation.
type conversationPayload struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	StaffID        string    `json:"staffId"`
	GuardianID     string    `json:"guardianId"`
	ChildID        *string   `json:"childId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

func toConversationPayload(c chat.Conversation) conversationPayload {
	return conversationPayload{
		ID:             c.ID,
		TenantID:       c.TenantID,
		StaffID:        c.StaffID,
		GuardianID:     c.GuardianID,
		ChildID:        c.ChildID,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
	}
}

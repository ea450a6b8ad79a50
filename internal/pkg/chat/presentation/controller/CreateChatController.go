package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// CreateChatController handles POST /conversations, which returns the
// existing conversation for the tuple or creates it.
// One controller per endpoint
type CreateChatController struct {
	UC      *usecase.GetOrCreateConversationUseCase
	Timeout time.Duration
}

func NewCreateChatController(uc *usecase.GetOrCreateConversationUseCase, timeout time.Duration) *CreateChatController {
	return &CreateChatController{UC: uc, Timeout: timeout}
}

type createChatRequest struct {
	StaffID    string  `json:"staffId" binding:"required"`
	GuardianID string  `json:"guardianId" binding:"required"`
	ChildID    *string `json:"childId"`
}

func (h *CreateChatController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}

		var req createChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := usecase.GetOrCreateConversationInput{
			Actor:      who,
			StaffID:    req.StaffID,
			GuardianID: req.GuardianID,
			ChildID:    req.ChildID,
		}
		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		conv, created, err := h.UC.Execute(ctx, in)
		if err != nil {
			writeError(c, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, toConversationPayload(*conv))
	}
}

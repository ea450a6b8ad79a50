package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/360john360/childnur-sub000/internal/infrastructure/auth"
	"github.com/360john360/childnur-sub000/internal/infrastructure/metrics"
	"github.com/360john360/childnur-sub000/internal/infrastructure/realtime"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/delivery"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

// Client-to-server frame types.
const (
	frameSendMessage       = "send_message"
	frameTyping            = "typing"
	frameMarkRead          = "mark_read"
	frameJoinConversation  = "join_conversation"
	frameLeaveConversation = "leave_conversation"
)

// Socket error codes.
const (
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeBadRequest   = "bad_request"
	codeInternal     = "internal_error"
)

const (
	defaultReadTimeout = 60 * time.Second
	maxFrameSize       = 1 << 20 // 1MB payload cap
)

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
type ChatSocketController struct {
	Tokens   auth.Verifier
	Presence *realtime.Presence
	Groups   *realtime.Groups
	Router   *delivery.Router

	SendMessageUC *usecase.SendMessageUseCase
	MarkReadUC    *usecase.MarkReadUseCase
	JoinUC        *usecase.JoinConversationUseCase

	Metrics *metrics.Metrics
	Log     *zap.Logger

	// InflightTimeout bounds each frame's use case call.
	InflightTimeout time.Duration
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The socket is authenticated by bearer token, never by cookie.
		return true
	},
}

type inboundFrame struct {
	Type            string            `json:"type"`
	RequestID       string            `json:"requestId,omitempty"`
	ConversationID  string            `json:"conversationId,omitempty"`
	Content         string            `json:"content,omitempty"`
	AttachmentRefs  []chat.Attachment `json:"attachmentRefs,omitempty"`
	ClientMessageID *string           `json:"clientMessageId,omitempty"`
	IsTyping        bool              `json:"isTyping,omitempty"`
}

type connectedFrame struct {
	Type         string `json:"type"`
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

type messageSentFrame struct {
	Type      string                  `json:"type"`
	RequestID string                  `json:"requestId,omitempty"`
	Duplicate bool                    `json:"duplicate,omitempty"`
	Message   delivery.MessagePayload `json:"message"`
}

type ackFrame struct {
	Type           string `json:"type"`
	RequestID      string `json:"requestId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

type errorFrame struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// Handle authenticates, upgrades and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := ctl.logger()

		id, err := ctl.Tokens.Verify(auth.TokenFromRequest(c.Request))
		if err != nil {
			ctl.Metrics.AuthFailure("socket")
			log.Info("socket rejected", zap.String("remote", c.ClientIP()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": codeUnauthorized})
			return
		}
		who := chat.Actor{UserID: id.UserID, TenantID: id.TenantID, Supervisor: id.Supervisor}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := realtime.NewConnection(who.UserID, ws)
		conn.Start()
		ctl.Presence.Register(who.UserID, conn)
		ctl.Metrics.ChannelOpened()
		log = log.With(zap.String("user_id", who.UserID), zap.String("connection_id", conn.ID()))
		log.Debug("channel registered")
		defer func() {
			ctl.Presence.Unregister(who.UserID, conn)
			ctl.Groups.LeaveAll(conn)
			ctl.Metrics.ChannelClosed()
			conn.Close(websocket.CloseNormalClosure, "session closed")
			log.Debug("channel unregistered")
		}()

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.reply(conn, connectedFrame{Type: "connected", UserID: who.UserID, ConnectionID: conn.ID()})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					log.Debug("socket read ended", zap.Error(err))
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "", codeBadRequest, "invalid payload")
				continue
			}
			ctl.dispatch(c.Request.Context(), conn, who, frame)
		}
	}
}

func (ctl *ChatSocketController) dispatch(ctx context.Context, conn *realtime.Connection, who chat.Actor, frame inboundFrame) {
	switch frame.Type {
	case frameSendMessage:
		ctl.handleSend(ctx, conn, who, frame)
	case frameTyping:
		ctl.handleTyping(conn, frame)
	case frameMarkRead:
		ctl.handleMarkRead(ctx, conn, who, frame)
	case frameJoinConversation:
		ctl.handleJoin(ctx, conn, who, frame)
	case frameLeaveConversation:
		ctl.handleLeave(conn, frame)
	default:
		ctl.replyError(conn, frame.RequestID, codeBadRequest, "unknown frame type")
	}
}

func (ctl *ChatSocketController) handleSend(ctx context.Context, conn *realtime.Connection, who chat.Actor, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame.RequestID, codeBadRequest, "conversationId is required")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout())
	defer cancel()

	res, err := ctl.SendMessageUC.Execute(ctx, usecase.SendMessageInput{
		Actor:           who,
		ConversationID:  frame.ConversationID,
		Body:            frame.Content,
		Attachments:     frame.AttachmentRefs,
		ClientMessageID: frame.ClientMessageID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, frame.RequestID, err)
		return
	}
	if !res.Duplicate {
		ctl.Metrics.Stored("socket")
	}

	ctl.reply(conn, messageSentFrame{
		Type:      "message_sent",
		RequestID: frame.RequestID,
		Duplicate: res.Duplicate,
		Message:   delivery.NewMessagePayload(res.Message),
	})
}

// handleTyping relays only for channels that joined the conversation, so
// the authorization done at join time covers it.
func (ctl *ChatSocketController) handleTyping(conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame.RequestID, codeBadRequest, "conversationId is required")
		return
	}
	if !ctl.Groups.IsMember(frame.ConversationID, conn) {
		ctl.replyError(conn, frame.RequestID, codeForbidden, "join the conversation first")
		return
	}
	ctl.Router.RouteTyping(frame.ConversationID, conn, frame.IsTyping)
}

func (ctl *ChatSocketController) handleMarkRead(ctx context.Context, conn *realtime.Connection, who chat.Actor, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame.RequestID, codeBadRequest, "conversationId is required")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout())
	defer cancel()

	if _, err := ctl.MarkReadUC.Execute(ctx, usecase.MarkReadInput{Actor: who, ConversationID: frame.ConversationID}); err != nil {
		ctl.handleUseCaseError(conn, frame.RequestID, err)
		return
	}
	ctl.reply(conn, ackFrame{Type: "read_ack", RequestID: frame.RequestID, ConversationID: frame.ConversationID})
}

func (ctl *ChatSocketController) handleJoin(ctx context.Context, conn *realtime.Connection, who chat.Actor, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame.RequestID, codeBadRequest, "conversationId is required")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout())
	defer cancel()

	if _, err := ctl.JoinUC.Execute(ctx, usecase.JoinConversationInput{Actor: who, ConversationID: frame.ConversationID}); err != nil {
		ctl.handleUseCaseError(conn, frame.RequestID, err)
		return
	}

	ctl.Groups.Join(frame.ConversationID, conn)
	ctl.reply(conn, ackFrame{Type: "joined", RequestID: frame.RequestID, ConversationID: frame.ConversationID})
}

func (ctl *ChatSocketController) handleLeave(conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, frame.RequestID, codeBadRequest, "conversationId is required")
		return
	}
	ctl.Groups.Leave(frame.ConversationID, conn)
	ctl.reply(conn, ackFrame{Type: "left", RequestID: frame.RequestID, ConversationID: frame.ConversationID})
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, requestID string, err error) {
	switch {
	case errors.Is(err, chat.ErrNotParticipant):
		ctl.replyError(conn, requestID, codeForbidden, "user is not a participant in this conversation")
	case errors.Is(err, chat.ErrNotFound):
		ctl.replyError(conn, requestID, codeNotFound, "conversation not found")
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidInput):
		ctl.replyError(conn, requestID, codeBadRequest, err.Error())
	default:
		ctl.logger().Error("socket frame failed", zap.String("user_id", conn.UserID()), zap.Error(err))
		ctl.replyError(conn, requestID, codeInternal, "unexpected error")
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, requestID, code, message string) {
	ctl.reply(conn, errorFrame{Type: "error", Code: code, Error: message, RequestID: requestID})
}

func (ctl *ChatSocketController) reply(conn *realtime.Connection, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := conn.Send(payload); err != nil {
		ctl.logger().Debug("direct reply dropped", zap.String("connection_id", conn.ID()), zap.Error(err))
	}
}

func (ctl *ChatSocketController) inflightTimeout() time.Duration {
	if ctl.InflightTimeout <= 0 {
		return defaultRequestTimeout
	}
	return ctl.InflightTimeout
}

func (ctl *ChatSocketController) logger() *zap.Logger {
	if ctl.Log == nil {
		return zap.NewNop()
	}
	return ctl.Log
}

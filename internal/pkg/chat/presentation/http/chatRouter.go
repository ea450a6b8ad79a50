package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/360john360/childnur-sub000/internal/infrastructure/auth"
	"github.com/360john360/childnur-sub000/internal/infrastructure/metrics"
	qport "github.com/360john360/childnur-sub000/internal/infrastructure/queue/port"
	"github.com/360john360/childnur-sub000/internal/infrastructure/realtime"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/delivery"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/presentation/controller"
)

// Dependencies is everything the chat endpoints are built from. Queue is
// optional; without it the queued send route is not registered.
type Dependencies struct {
	Chat      repository.ChatRepository
	Directory repository.DirectoryRepository
	Queue     qport.Client

	Presence *realtime.Presence
	Groups   *realtime.Groups
	Router   *delivery.Router

	Tokens  auth.Verifier
	Metrics *metrics.Metrics
	Log     *zap.Logger

	RequestTimeout time.Duration
}

// UseCases is the shared set of use cases: the websocket, HTTP and queue
// entry points all run on the same instances.
type UseCases struct {
	GetOrCreate *usecase.GetOrCreateConversationUseCase
	List        *usecase.ListConversationsUseCase
	Send        *usecase.SendMessageUseCase
	Page        *usecase.GetMessageUseCase
	MarkRead    *usecase.MarkReadUseCase
	Unread      *usecase.UnreadCountUseCase
	Join        *usecase.JoinConversationUseCase
}

// NewUseCases wires use cases over the repositories, routing through d.Router.
func NewUseCases(d Dependencies) UseCases {
	return UseCases{
		GetOrCreate: usecase.NewGetOrCreateConversationUseCase(d.Chat, d.Directory),
		List:        usecase.NewListConversationsUseCase(d.Chat),
		Send:        usecase.NewSendMessageUseCase(d.Chat, d.Router),
		Page:        usecase.NewGetMessageUseCase(d.Chat),
		MarkRead:    usecase.NewMarkReadUseCase(d.Chat, d.Router),
		Unread:      usecase.NewUnreadCountUseCase(d.Chat),
		Join:        usecase.NewJoinConversationUseCase(d.Chat),
	}
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Dependencies, uc UseCases) {
	timeout := d.RequestTimeout

	socketCtl := &controller.ChatSocketController{
		Tokens:          d.Tokens,
		Presence:        d.Presence,
		Groups:          d.Groups,
		Router:          d.Router,
		SendMessageUC:   uc.Send,
		MarkReadUC:      uc.MarkRead,
		JoinUC:          uc.Join,
		Metrics:         d.Metrics,
		Log:             d.Log,
		InflightTimeout: timeout,
	}

	// GET /api/v1/ws -> websocket endpoint; authenticates before upgrading
	g.GET("/ws", socketCtl.Handle())

	api := g.Group("", auth.Middleware(d.Tokens, func(*gin.Context, error) {
		d.Metrics.AuthFailure("http")
	}))

	// GET /api/v1/conversations -> conversations visible to the caller
	api.GET("/conversations", controller.NewListConversationsController(uc.List, timeout).Handle())

	// POST /api/v1/conversations -> get or create the conversation for a tuple
	api.POST("/conversations", controller.NewCreateChatController(uc.GetOrCreate, timeout).Handle())

	// GET /api/v1/conversations/:conversationId/messages -> page of history
	api.GET("/conversations/:conversationId/messages", controller.NewGetMessageController(uc.Page, timeout).Handle())

	// POST /api/v1/conversations/:conversationId/messages -> send a message
	api.POST("/conversations/:conversationId/messages", controller.NewSendMessageController(uc.Send, d.Metrics, timeout).Handle())

	// POST /api/v1/conversations/:conversationId/messages/queue -> send through the worker
	if d.Queue != nil {
		api.POST("/conversations/:conversationId/messages/queue", controller.NewEnqueueMessageController(d.Queue, uc.Join, timeout).Handle())
	}

	// POST /api/v1/conversations/:conversationId/read -> mark the other side's messages read
	api.POST("/conversations/:conversationId/read", controller.NewMarkReadController(uc.MarkRead, timeout).Handle())

	// GET /api/v1/messages/unread-count -> unread total for the caller
	api.GET("/messages/unread-count", controller.NewUnreadCountController(uc.Unread, timeout).Handle())
}

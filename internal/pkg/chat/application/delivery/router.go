package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/360john360/childnur-sub000/internal/infrastructure/metrics"
	"github.com/360john360/childnur-sub000/internal/infrastructure/realtime"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
)

// profileTimeout bounds the quiet-hours lookup done per recipient.
const profileTimeout = 2 * time.Second

// PresenceSource yields a user's live channels.
type PresenceSource interface {
	ChannelsFor(userID string) []realtime.Channel
}

// GroupSource yields the channels observing a conversation.
type GroupSource interface {
	Members(conversationID string) []realtime.Channel
}

// Router computes recipient sets and pushes events to live channels.
// Delivery is best-effort: failures are logged and counted, never returned.
type Router struct {
	presence  PresenceSource
	groups    GroupSource
	directory repository.DirectoryRepository
	metrics   *metrics.Metrics
	log       *zap.Logger

	// Now is the clock used for quiet-hours evaluation.
	Now func() time.Time
}

var _ usecase.Notifier = (*Router)(nil)

func NewRouter(presence PresenceSource, groups GroupSource, directory repository.DirectoryRepository, m *metrics.Metrics, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{presence: presence, groups: groups, directory: directory, metrics: m, log: log, Now: time.Now}
}

// targets is a per-event channel set; a channel gets at most one copy.
type targets map[string]realtime.Channel

func (t targets) add(chs []realtime.Channel) {
	for _, ch := range chs {
		t[ch.ID()] = ch
	}
}

// RouteNewMessage pushes message_received to the sender's devices, the
// other side unless in quiet hours, and every observer of the conversation.
func (r *Router) RouteNewMessage(ctx context.Context, msg chat.Message, conv chat.Conversation) {
	payload, err := encode(MessageReceivedEvent{Type: EventMessageReceived, Message: NewMessagePayload(msg)})
	if err != nil {
		r.log.Error("encode message event", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	to := targets{}
	to.add(r.presence.ChannelsFor(msg.SenderID))
	for _, recipient := range conv.Recipients(msg.SenderID) {
		if r.suppressed(ctx, conv.TenantID, recipient) {
			r.metrics.Delivery(EventMessageReceived, metrics.OutcomeSuppressed)
			r.log.Debug("push suppressed by quiet hours",
				zap.String("conversation_id", conv.ID), zap.String("recipient_id", recipient))
			continue
		}
		to.add(r.presence.ChannelsFor(recipient))
	}
	to.add(r.groups.Members(conv.ID))

	r.deliver(EventMessageReceived, conv.ID, to, payload)
}

// RouteReadReceipt pushes messages_read to the other participant and the
// conversation's observers. Read state is never suppressed.
func (r *Router) RouteReadReceipt(_ context.Context, conv chat.Conversation, readerID string, otherParticipantID string, readAt time.Time) {
	payload, err := encode(MessagesReadEvent{
		Type:           EventMessagesRead,
		ConversationID: conv.ID,
		ReadBy:         readerID,
		ReadAt:         readAt.UTC(),
	})
	if err != nil {
		r.log.Error("encode read event", zap.String("conversation_id", conv.ID), zap.Error(err))
		return
	}

	to := targets{}
	if otherParticipantID != "" {
		to.add(r.presence.ChannelsFor(otherParticipantID))
	}
	to.add(r.groups.Members(conv.ID))

	r.deliver(EventMessagesRead, conv.ID, to, payload)
}

// RouteTyping relays a typing signal to the conversation group, excluding the originating channel.
func (r *Router) RouteTyping(conversationID string, from realtime.Channel, isTyping bool) {
	payload, err := encode(UserTypingEvent{
		Type:           EventUserTyping,
		ConversationID: conversationID,
		UserID:         from.UserID(),
		IsTyping:       isTyping,
	})
	if err != nil {
		return
	}

	to := targets{}
	to.add(r.groups.Members(conversationID))
	delete(to, from.ID())

	r.deliver(EventUserTyping, conversationID, to, payload)
}

// suppressed reports whether userID is in quiet hours right now. Lookup
// failures deliver rather than drop.
func (r *Router) suppressed(ctx context.Context, tenantID, userID string) bool {
	if r.directory == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), profileTimeout)
	defer cancel()

	profile, err := r.directory.GetProfile(ctx, tenantID, userID)
	if err != nil {
		r.log.Warn("quiet hours lookup failed; delivering",
			zap.String("tenant_id", tenantID), zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return profile.Quiet(r.Now())
}

func (r *Router) deliver(event, conversationID string, to targets, payload []byte) {
	for _, ch := range to {
		if err := ch.Send(payload); err != nil {
			r.metrics.Delivery(event, metrics.OutcomeFailed)
			r.log.Warn("live delivery failed",
				zap.String("event", event),
				zap.String("conversation_id", conversationID),
				zap.String("user_id", ch.UserID()),
				zap.String("channel_id", ch.ID()),
				zap.Error(err))
			continue
		}
		r.metrics.Delivery(event, metrics.OutcomeDelivered)
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/360john360/childnur-sub000/internal/infrastructure/auth"
	"github.com/360john360/childnur-sub000/internal/infrastructure/metrics"
	qport "github.com/360john360/childnur-sub000/internal/infrastructure/queue/port"
	"github.com/360john360/childnur-sub000/internal/infrastructure/realtime"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/delivery"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/adapter"
)

const tenant = "t1"

var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []qport.Task
	opts  []qport.EnqueueOption
	seen  map[string]bool
}

func (q *fakeQueue) Enqueue(_ context.Context, t qport.Task, opt qport.EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen == nil {
		q.seen = map[string]bool{}
	}
	if q.seen[opt.TaskID] {
		return "", qport.ErrDuplicateTask
	}
	q.seen[opt.TaskID] = true
	q.tasks = append(q.tasks, t)
	q.opts = append(q.opts, opt)
	return "task-" + opt.TaskID, nil
}

func (q *fakeQueue) Close() error { return nil }

type testEnv struct {
	engine  *gin.Engine
	server  *httptest.Server
	tokens  *auth.TokenManager
	router  *delivery.Router
	metrics *metrics.Metrics
	queue   *fakeQueue
	clock   time.Time
	mu      sync.Mutex
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := adapter.NewMemoryDirectoryRepository()
	for _, id := range []string{"staffA", "guardianB", "guardianZ", "boss"} {
		dir.PutProfile(chat.Profile{UserID: id, TenantID: tenant, Location: time.UTC})
	}
	dir.PutProfile(chat.Profile{
		UserID:     "guardianB",
		TenantID:   tenant,
		Location:   time.UTC,
		QuietHours: &chat.QuietHours{Start: 22 * 60, End: 7 * 60},
	})
	dir.PutProfile(chat.Profile{UserID: "staffQ", TenantID: "t2", Location: time.UTC})
	dir.AddChild(tenant, "C1")

	env := &testEnv{
		tokens:  auth.NewTokenManager("test-secret", "childnur"),
		metrics: metrics.New(),
		queue:   &fakeQueue{},
		clock:   noon,
	}
	presence := realtime.NewPresence()
	groups := realtime.NewGroups()
	env.router = delivery.NewRouter(presence, groups, dir, env.metrics, nil)
	env.router.Now = env.now

	deps := Dependencies{
		Chat:           adapter.NewMemoryChatRepository(),
		Directory:      dir,
		Queue:          env.queue,
		Presence:       presence,
		Groups:         groups,
		Router:         env.router,
		Tokens:         env.tokens,
		Metrics:        env.metrics,
		RequestTimeout: 2 * time.Second,
	}
	uc := NewUseCases(deps)
	uc.Send.Now = env.now
	uc.MarkRead.Now = env.now
	uc.GetOrCreate.Now = env.now

	env.engine = gin.New()
	RegisterRoutes(env.engine.Group("/api/v1"), deps, uc)
	env.server = httptest.NewServer(env.engine)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *testEnv) setClock(t time.Time) {
	e.mu.Lock()
	e.clock = t
	e.mu.Unlock()
}

func (e *testEnv) token(t *testing.T, userID string, supervisor bool) string {
	t.Helper()
	return e.tokenIn(t, tenant, userID, supervisor)
}

func (e *testEnv) tokenIn(t *testing.T, tenantID, userID string, supervisor bool) string {
	t.Helper()
	tok, err := e.tokens.GenerateToken(auth.Identity{UserID: userID, TenantID: tenantID, Supervisor: supervisor}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type conversationBody struct {
	ID         string  `json:"id"`
	StaffID    string  `json:"staffId"`
	GuardianID string  `json:"guardianId"`
	ChildID    *string `json:"childId"`
}

type pageBody struct {
	Messages []delivery.MessagePayload `json:"messages"`
	Total    int                       `json:"total"`
	Limit    int                       `json:"limit"`
	Offset   int                       `json:"offset"`
}

type countBody struct {
	Count int `json:"count"`
}

func (e *testEnv) openConversation(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/conversations", e.token(t, "staffA", false),
		gin.H{"staffId": "staffA", "guardianId": "guardianB"})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, w.Code, w.Body.String())
	return decode[conversationBody](t, w).ID
}

func (e *testEnv) unread(t *testing.T, userID string) int {
	t.Helper()
	w := e.do(t, http.MethodGet, "/messages/unread-count", e.token(t, userID, false), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[countBody](t, w).Count
}

// ---- websocket helpers ----

type wsEvent struct {
	Type           string                  `json:"type"`
	RequestID      string                  `json:"requestId"`
	ConversationID string                  `json:"conversationId"`
	ReadBy         string                  `json:"readBy"`
	UserID         string                  `json:"userId"`
	IsTyping       bool                    `json:"isTyping"`
	Code           string                  `json:"code"`
	Message        delivery.MessagePayload `json:"message"`
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/v1/ws?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	hello := read(t, conn)
	require.Equal(t, "connected", hello.Type)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame gin.H) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func read(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// barrier proves nothing else is queued for conn: the server answers
// frames in order, so the next frame must be the leave acknowledgement.
func barrier(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, gin.H{"type": "leave_conversation", "conversationId": "barrier"})
	ev := read(t, conn)
	require.Equal(t, "left", ev.Type, "unexpected pending %s event", ev.Type)
}

// ---- HTTP surface ----

func TestRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/conversations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.AuthFailures.WithLabelValues("http")))
}

func TestSocketRejectsBadTokenBeforeUpgrade(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/ws?access_token=forged"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.AuthFailures.WithLabelValues("socket")))
}

func TestCreateConversationConcurrently(t *testing.T) {
	env := newTestEnv(t)
	staff := env.token(t, "staffA", false)
	guardian := env.token(t, "guardianB", false)
	body := gin.H{"staffId": "staffA", "guardianId": "guardianB", "childId": "C1"}

	var wg sync.WaitGroup
	results := make([]*httptest.ResponseRecorder, 2)
	for i, tok := range []string{staff, guardian} {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			results[i] = env.do(t, http.MethodPost, "/conversations", tok, body)
		}(i, tok)
	}
	wg.Wait()

	codes := []int{results[0].Code, results[1].Code}
	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusOK}, codes)
	first := decode[conversationBody](t, results[0])
	second := decode[conversationBody](t, results[1])
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, first.ChildID)
	assert.Equal(t, "C1", *first.ChildID)
}

func TestCreateConversationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		token  string
		body   any
		status int
	}{
		{"missing fields", env.token(t, "staffA", false), gin.H{"staffId": "staffA"}, http.StatusBadRequest},
		{"outsider", env.token(t, "guardianZ", false), gin.H{"staffId": "staffA", "guardianId": "guardianB"}, http.StatusForbidden},
		{"unknown child", env.token(t, "staffA", false), gin.H{"staffId": "staffA", "guardianId": "guardianB", "childId": "C9"}, http.StatusNotFound},
		{"cross tenant", env.tokenIn(t, "t2", "staffQ", false), gin.H{"staffId": "staffQ", "guardianId": "guardianB"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/conversations", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestListConversationsScopes(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	w := env.do(t, http.MethodPost, "/conversations", env.token(t, "guardianZ", false),
		gin.H{"staffId": "staffA", "guardianId": "guardianZ"})
	require.Equal(t, http.StatusCreated, w.Code)

	type listBody struct {
		Conversations []conversationBody `json:"conversations"`
	}
	list := func(token string) []conversationBody {
		w := env.do(t, http.MethodGet, "/conversations", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		return decode[listBody](t, w).Conversations
	}

	mine := list(env.token(t, "guardianB", false))
	require.Len(t, mine, 1)
	assert.Equal(t, convID, mine[0].ID)
	assert.Len(t, list(env.token(t, "boss", true)), 2)
	assert.Empty(t, list(env.tokenIn(t, "t2", "boss2", true)))
}

func TestSendMessageHTTP(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	staff := env.token(t, "staffA", false)
	path := "/conversations/" + convID + "/messages"

	w := env.do(t, http.MethodPost, path, staff, gin.H{
		"content":         "  Pickup moved to 4pm  ",
		"attachmentRefs":  []gin.H{{"url": "https://cdn/p.jpg", "kind": "image", "size": 2048}},
		"clientMessageId": "m-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[delivery.MessagePayload](t, w)
	assert.Equal(t, "Pickup moved to 4pm", msg.Content)
	assert.Equal(t, "staffA", msg.SenderID)
	require.Len(t, msg.AttachmentRefs, 1)
	assert.Equal(t, int64(2048), msg.AttachmentRefs[0].Size)
	assert.Nil(t, msg.ReadAt)

	w = env.do(t, http.MethodPost, path, staff, gin.H{"content": "Pickup moved to 4pm", "clientMessageId": "m-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, msg.ID, decode[delivery.MessagePayload](t, w).ID)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.MessagesStored.WithLabelValues("http")))

	tests := []struct {
		name   string
		token  string
		path   string
		body   any
		status int
	}{
		{"empty", staff, path, gin.H{"content": "   "}, http.StatusBadRequest},
		{"malformed", staff, path, "not an object", http.StatusBadRequest},
		{"outsider", env.token(t, "guardianZ", false), path, gin.H{"content": "hi"}, http.StatusForbidden},
		{"other tenant", env.tokenIn(t, "t2", "staffQ", true), path, gin.H{"content": "hi"}, http.StatusNotFound},
		{"unknown conversation", staff, "/conversations/nope/messages", gin.H{"content": "hi"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestGetMessagesPaging(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	staff := env.token(t, "staffA", false)
	for _, body := range []string{"one", "two", "three"} {
		env.setClock(env.now().Add(time.Second))
		w := env.do(t, http.MethodPost, "/conversations/"+convID+"/messages", staff, gin.H{"content": body})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, http.MethodGet, "/conversations/"+convID+"/messages?limit=2&offset=0", env.token(t, "guardianB", false), nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[pageBody](t, w)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "two", page.Messages[0].Content)
	assert.Equal(t, "three", page.Messages[1].Content)

	w = env.do(t, http.MethodGet, "/conversations/"+convID+"/messages?limit=500&offset=-1", env.token(t, "boss", true), nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[pageBody](t, w)
	assert.Equal(t, 200, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Len(t, page.Messages, 3)

	w = env.do(t, http.MethodGet, "/conversations/"+convID+"/messages?limit=abc", staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkReadHTTP(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	guardian := env.token(t, "guardianB", false)
	w := env.do(t, http.MethodPost, "/conversations/"+convID+"/messages", guardian, gin.H{"content": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)

	type readBody struct {
		ConversationID string    `json:"conversationId"`
		ReadAt         time.Time `json:"readAt"`
		Updated        int       `json:"updated"`
	}
	staff := env.token(t, "staffA", false)
	w = env.do(t, http.MethodPost, "/conversations/"+convID+"/read", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[readBody](t, w)
	assert.Equal(t, convID, first.ConversationID)
	assert.Equal(t, 1, first.Updated)
	assert.True(t, first.ReadAt.Equal(noon))

	w = env.do(t, http.MethodPost, "/conversations/"+convID+"/read", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[readBody](t, w).Updated)

	w = env.do(t, http.MethodPost, "/conversations/"+convID+"/read", env.token(t, "boss", true), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEnqueueMessage(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	staff := env.token(t, "staffA", false)
	path := "/conversations/" + convID + "/messages/queue"

	w := env.do(t, http.MethodPost, path, staff, gin.H{"content": "later"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, path, staff, gin.H{"clientMessageId": "q-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, path, staff, gin.H{"content": "later", "clientMessageId": "q-1"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, path, staff, gin.H{"content": "later", "clientMessageId": "q-1"})
	require.Equal(t, http.StatusAccepted, w.Code, "re-enqueueing the same client id is accepted")

	require.Len(t, env.queue.tasks, 1)
	assert.Equal(t, "chat", env.queue.opts[0].Queue)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload, &payload))
	assert.Equal(t, "staffA", payload["senderId"])
	assert.Equal(t, tenant, payload["tenantId"])
	assert.Equal(t, convID, payload["conversationId"])
}

func TestEnqueueMessageRejectsBeforeQueueing(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	body := gin.H{"content": "later", "clientMessageId": "q-2"}

	tests := []struct {
		name   string
		token  string
		convID string
		status int
	}{
		{"outsider", env.token(t, "guardianZ", false), convID, http.StatusForbidden},
		{"other tenant", env.tokenIn(t, "t2", "staffQ", false), convID, http.StatusNotFound},
		{"unknown conversation", env.token(t, "staffA", false), "00000000-0000-0000-0000-000000000001", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/conversations/"+tt.convID+"/messages/queue", tt.token, body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	env.queue.mu.Lock()
	defer env.queue.mu.Unlock()
	assert.Empty(t, env.queue.tasks, "rejected sends never reach the queue")
}

// ---- realtime path ----

func TestRealtimeConversationFlow(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	staff := env.token(t, "staffA", false)
	guardian := env.token(t, "guardianB", false)

	a1 := env.dial(t, staff)
	a2 := env.dial(t, staff)
	b1 := env.dial(t, guardian)

	// A sends over the socket; every device of both sides sees it once.
	send(t, a1, gin.H{"type": "send_message", "conversationId": convID, "content": "Hello", "requestId": "r1"})
	pushed := read(t, a1)
	require.Equal(t, "message_received", pushed.Type)
	ack := read(t, a1)
	require.Equal(t, "message_sent", ack.Type)
	assert.Equal(t, "r1", ack.RequestID)
	assert.Equal(t, pushed.Message.ID, ack.Message.ID)

	for _, conn := range []*websocket.Conn{a2, b1} {
		ev := read(t, conn)
		require.Equal(t, "message_received", ev.Type)
		assert.Equal(t, "Hello", ev.Message.Content)
		assert.Equal(t, "staffA", ev.Message.SenderID)
	}
	barrier(t, a1)
	barrier(t, a2)
	barrier(t, b1)

	// B replies over HTTP; the socket path observes the same state.
	env.setClock(noon.Add(time.Minute))
	w := env.do(t, http.MethodPost, "/conversations/"+convID+"/messages", guardian, gin.H{"content": "Hi!"})
	require.Equal(t, http.StatusCreated, w.Code)
	reply := decode[delivery.MessagePayload](t, w)
	for _, conn := range []*websocket.Conn{a1, a2, b1} {
		ev := read(t, conn)
		require.Equal(t, "message_received", ev.Type)
		assert.Equal(t, reply, ev.Message)
	}
	assert.Equal(t, 1, env.unread(t, "staffA"))

	// A reads over the socket; B learns about it.
	send(t, a1, gin.H{"type": "mark_read", "conversationId": convID, "requestId": "r2"})
	readAck := read(t, a1)
	assert.Equal(t, "read_ack", readAck.Type)
	assert.Equal(t, "r2", readAck.RequestID)
	receipt := read(t, b1)
	require.Equal(t, "messages_read", receipt.Type)
	assert.Equal(t, "staffA", receipt.ReadBy)
	assert.Equal(t, convID, receipt.ConversationID)
	assert.Zero(t, env.unread(t, "staffA"))
	barrier(t, a2)

	// Reading again changes nothing and notifies nobody.
	send(t, a1, gin.H{"type": "mark_read", "conversationId": convID})
	assert.Equal(t, "read_ack", read(t, a1).Type)
	barrier(t, b1)

	w = env.do(t, http.MethodGet, "/conversations/"+convID+"/messages", guardian, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[pageBody](t, w)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, ack.Message.ID, page.Messages[0].ID)
	assert.Equal(t, reply.ID, page.Messages[1].ID)
	assert.NotNil(t, page.Messages[1].ReadAt)
	assert.Nil(t, page.Messages[0].ReadAt)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.MessagesStored.WithLabelValues("socket")))
}

func TestRealtimeQuietHoursSuppressesRecipientOnly(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	env.setClock(time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC))

	a1 := env.dial(t, env.token(t, "staffA", false))
	b1 := env.dial(t, env.token(t, "guardianB", false))

	send(t, a1, gin.H{"type": "send_message", "conversationId": convID, "content": "Late note"})
	assert.Equal(t, "message_received", read(t, a1).Type)
	assert.Equal(t, "message_sent", read(t, a1).Type)
	barrier(t, b1)

	// Still stored and counted as unread.
	assert.Equal(t, 1, env.unread(t, "guardianB"))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Deliveries.WithLabelValues(delivery.EventMessageReceived, metrics.OutcomeSuppressed)))

	// Read receipts are never suppressed.
	send(t, b1, gin.H{"type": "mark_read", "conversationId": convID})
	assert.Equal(t, "read_ack", read(t, b1).Type)
	receipt := read(t, a1)
	assert.Equal(t, "messages_read", receipt.Type)
	assert.Equal(t, "guardianB", receipt.ReadBy)
}

func TestRealtimeJoinTypingAndObservers(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)

	a1 := env.dial(t, env.token(t, "staffA", false))
	a2 := env.dial(t, env.token(t, "staffA", false))
	b1 := env.dial(t, env.token(t, "guardianB", false))
	boss := env.dial(t, env.token(t, "boss", true))
	outsider := env.dial(t, env.token(t, "guardianZ", false))

	// Typing requires a joined channel.
	send(t, a1, gin.H{"type": "typing", "conversationId": convID, "isTyping": true})
	ev := read(t, a1)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "forbidden", ev.Code)

	send(t, outsider, gin.H{"type": "join_conversation", "conversationId": convID, "requestId": "j0"})
	ev = read(t, outsider)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "forbidden", ev.Code)
	assert.Equal(t, "j0", ev.RequestID)

	for _, conn := range []*websocket.Conn{a1, b1, boss} {
		send(t, conn, gin.H{"type": "join_conversation", "conversationId": convID})
		joined := read(t, conn)
		require.Equal(t, "joined", joined.Type)
		assert.Equal(t, convID, joined.ConversationID)
	}

	send(t, a1, gin.H{"type": "typing", "conversationId": convID, "isTyping": true})
	for _, conn := range []*websocket.Conn{b1, boss} {
		typing := read(t, conn)
		require.Equal(t, "user_typing", typing.Type)
		assert.Equal(t, "staffA", typing.UserID)
		assert.True(t, typing.IsTyping)
	}
	barrier(t, a1)
	barrier(t, a2)

	// The supervisor observes new messages exactly once even though the
	// group and presence both point at b1.
	send(t, a1, gin.H{"type": "send_message", "conversationId": convID, "content": "Nap went well"})
	for _, conn := range []*websocket.Conn{b1, boss, a2} {
		assert.Equal(t, "message_received", read(t, conn).Type)
		barrier(t, conn)
	}
	assert.Equal(t, "message_received", read(t, a1).Type)
	assert.Equal(t, "message_sent", read(t, a1).Type)
	barrier(t, outsider)
}

func TestRealtimeFrameErrors(t *testing.T) {
	env := newTestEnv(t)
	convID := env.openConversation(t)
	a1 := env.dial(t, env.token(t, "staffA", false))

	require.NoError(t, a1.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "bad_request", read(t, a1).Code)

	send(t, a1, gin.H{"type": "dance"})
	assert.Equal(t, "bad_request", read(t, a1).Code)

	send(t, a1, gin.H{"type": "send_message", "conversationId": convID, "content": "  ", "requestId": "e1"})
	ev := read(t, a1)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "bad_request", ev.Code)
	assert.Equal(t, "e1", ev.RequestID)

	send(t, a1, gin.H{"type": "send_message", "conversationId": "missing", "content": "hi"})
	assert.Equal(t, "not_found", read(t, a1).Code)

	send(t, a1, gin.H{"type": "mark_read"})
	assert.Equal(t, "bad_request", read(t, a1).Code)

	w := env.do(t, http.MethodGet, "/conversations/"+convID+"/messages", env.token(t, "staffA", false), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[pageBody](t, w).Total)
}

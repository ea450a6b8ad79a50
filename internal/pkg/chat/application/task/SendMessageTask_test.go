package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qport "github.com/360john360/childnur-sub000/internal/infrastructure/queue/port"
	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/usecase"
)

type fakeSender struct {
	got []usecase.SendMessageInput
	err error
	dup bool
}

func (f *fakeSender) Execute(_ context.Context, in usecase.SendMessageInput) (*usecase.SendMessageResult, error) {
	f.got = append(f.got, in)
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.SendMessageResult{Duplicate: f.dup}, nil
}

type captureServer struct {
	handlers map[string]qport.Handler
}

func (s *captureServer) Register(taskType string, h qport.Handler) {
	if s.handlers == nil {
		s.handlers = map[string]qport.Handler{}
	}
	s.handlers[taskType] = h
}

func (s *captureServer) Run(context.Context) error { return nil }

func samplePayload() SendMessageTaskPayload {
	return SendMessageTaskPayload{
		SenderID:        "staffA",
		TenantID:        "t1",
		ConversationID:  "conv-1",
		Content:         "Hello",
		AttachmentRefs:  []chat.Attachment{{URL: "https://cdn/x.jpg", Kind: "image"}},
		ClientMessageID: "req-9",
	}
}

func TestNewSendMessageTaskRequiresClientID(t *testing.T) {
	p := samplePayload()
	p.ClientMessageID = " "
	_, err := NewSendMessageTask(p)
	assert.ErrorIs(t, err, chat.ErrInvalidInput)
}

func TestSendMessageTaskRoundTrip(t *testing.T) {
	srv := &captureServer{}
	sender := &fakeSender{}
	RegisterSendMessageTask(srv, sender, nil, nil)

	task, err := NewSendMessageTask(samplePayload())
	require.NoError(t, err)
	assert.Equal(t, SendMessageTaskType, task.Type)

	h := srv.handlers[SendMessageTaskType]
	require.NotNil(t, h)
	require.NoError(t, h(context.Background(), task))

	require.Len(t, sender.got, 1)
	in := sender.got[0]
	assert.Equal(t, chat.Actor{UserID: "staffA", TenantID: "t1"}, in.Actor)
	assert.Equal(t, "conv-1", in.ConversationID)
	assert.Equal(t, "Hello", in.Body)
	require.NotNil(t, in.ClientMessageID)
	assert.Equal(t, "req-9", *in.ClientMessageID)
	assert.Len(t, in.Attachments, 1)
}

func TestSendMessageHandlerRetryPolicy(t *testing.T) {
	task, err := NewSendMessageTask(samplePayload())
	require.NoError(t, err)

	tests := []struct {
		name          string
		err           error
		wantErr       bool
		wantPermanent bool
	}{
		{"stored", nil, false, false},
		{"not participant", chat.ErrNotParticipant, true, true},
		{"empty", chat.ErrEmptyMessage, true, true},
		{"database down", fmt.Errorf("%w: connection reset", usecase.ErrPersistence), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := SendMessageHandler(&fakeSender{err: tt.err}, nil, nil)
			err := h(context.Background(), task)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, errors.Is(err, qport.ErrPermanent))
		})
	}
}

func TestSendMessageHandlerMalformedPayload(t *testing.T) {
	h := SendMessageHandler(&fakeSender{}, nil, nil)
	err := h(context.Background(), qport.Task{Type: SendMessageTaskType, Payload: []byte("{")})
	assert.ErrorIs(t, err, qport.ErrPermanent)
}

func TestTaskIDIsStablePerClientMessage(t *testing.T) {
	a := samplePayload()
	b := samplePayload()
	b.Content = "edited"
	assert.Equal(t, a.TaskID(), b.TaskID())

	b.ClientMessageID = "req-10"
	assert.NotEqual(t, a.TaskID(), b.TaskID())

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"clientMessageId":"req-9"`)
}

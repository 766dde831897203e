package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"chat-bridge-go/pkg/tasks"
	"chat-bridge-go/pkg/telegram"
)

type recordingHandler struct {
	got []telegram.Update
	err error
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u telegram.Update) error {
	h.got = append(h.got, u)
	return h.err
}

func TestNewUpdateMessage_KeyedByConversation(t *testing.T) {
	task := tasks.UpdateTask{
		ConversationID: "42",
		UpdateID:       7,
		Update:         json.RawMessage(`{"update_id":7,"message":{"chat":{"id":42},"text":"hi"}}`),
		ReceivedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	msg, err := newUpdateMessage(task)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Key) != "42" {
		t.Fatalf("key = %q, want 42", msg.Key)
	}
	var decoded tasks.UpdateTask
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.UpdateID != 7 || decoded.ConversationID != "42" || !decoded.ReceivedAt.Equal(task.ReceivedAt) {
		t.Fatalf("unexpected task %+v", decoded)
	}

	if _, err := newUpdateMessage(tasks.UpdateTask{UpdateID: 1}); err == nil {
		t.Fatal("expected error for task without conversation id")
	}
}

func TestHandleMessage(t *testing.T) {
	value, _ := json.Marshal(tasks.UpdateTask{
		ConversationID: "5",
		UpdateID:       3,
		Update:         json.RawMessage(`{"update_id":3,"message":{"message_id":1,"chat":{"id":5},"text":"hello"}}`),
	})

	h := &recordingHandler{}
	if err := handleMessage(context.Background(), h, value); err != nil {
		t.Fatal(err)
	}
	if len(h.got) != 1 || h.got[0].Message == nil || h.got[0].Message.Text != "hello" || h.got[0].Message.Chat.ID != 5 {
		t.Fatalf("unexpected updates %+v", h.got)
	}

	boom := errors.New("boom")
	h = &recordingHandler{err: boom}
	if err := handleMessage(context.Background(), h, value); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestHandleMessage_Malformed(t *testing.T) {
	h := &recordingHandler{}
	if err := handleMessage(context.Background(), h, []byte("not json")); err == nil {
		t.Fatal("expected error for malformed task")
	}
	if err := handleMessage(context.Background(), h, []byte(`{"conversation_id":"1","update":{"update_id":`)); err == nil {
		t.Fatal("expected error for truncated task")
	}
	if len(h.got) != 0 {
		t.Fatalf("handler must not run for malformed messages, got %+v", h.got)
	}
}

func TestHandleMessage_UnexpectedUpdateShapeIsUnknown(t *testing.T) {
	h := &recordingHandler{}
	value := []byte(`{"conversation_id":"1","update_id":2,"update":{"update_id":2,"message":"not-an-object"}}`)
	if err := handleMessage(context.Background(), h, value); err != nil {
		t.Fatal(err)
	}
	if len(h.got) != 1 || h.got[0].Kind() != telegram.KindUnknown {
		t.Fatalf("expected one unknown update, got %+v", h.got)
	}
}

func TestBrokerList(t *testing.T) {
	got := brokerList(" a:9092, b:9092 ,,")
	if want := []string{"a:9092", "b:9092"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("brokerList = %v, want %v", got, want)
	}
}

package telegram

import "testing"

func TestDecodeUpdate_Kinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		want UpdateKind
	}{
		{"message", `{"update_id":1,"message":{"message_id":5,"chat":{"id":42},"text":"hi"}}`, KindMessage},
		{"edited", `{"update_id":2,"edited_message":{"message_id":5,"chat":{"id":42},"text":"hi!"}}`, KindEditedMessage},
		{"callback only", `{"update_id":3,"callback_query":{"id":"x","data":"y"}}`, KindUnknown},
		{"empty object", `{}`, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := DecodeUpdate([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeUpdate: %v", err)
			}
			if got := u.Kind(); got != tt.want {
				t.Fatalf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeUpdate_Malformed(t *testing.T) {
	for _, body := range []string{`{"update_id":`, `not json`, ``} {
		if _, err := DecodeUpdate([]byte(body)); err == nil {
			t.Fatalf("expected error for malformed JSON %q", body)
		}
	}
}

func TestDecodeUpdate_UnexpectedShapesAreUnknown(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"message is a string", `{"update_id":1,"message":"not-an-object"}`},
		{"chat id is a string", `{"message":{"chat":{"id":"abc"},"text":"hi"}}`},
		{"text is a number", `{"message":{"chat":{"id":1},"text":5}}`},
		{"message without chat", `{"update_id":4,"message":{"text":"hi"}}`},
		{"null message", `{"update_id":5,"message":null}`},
		{"edited message is an array", `{"edited_message":[1,2]}`},
		{"update id is a string", `{"update_id":"x"}`},
		{"top-level array", `[1,2,3]`},
		{"top-level string", `"hello"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := DecodeUpdate([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeUpdate: %v", err)
			}
			if got := u.Kind(); got != KindUnknown {
				t.Fatalf("Kind() = %q, want %q", got, KindUnknown)
			}
		})
	}
}

func TestDecodeUpdate_KeepsUpdateIDWhenVariantIsDropped(t *testing.T) {
	u, err := DecodeUpdate([]byte(`{"update_id":9,"message":"oops"}`))
	if err != nil {
		t.Fatal(err)
	}
	if u.UpdateID != 9 || u.Message != nil {
		t.Fatalf("unexpected update %+v", u)
	}
}

func TestMessage_UserText(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"plain text", Message{Text: "hello"}, "hello"},
		{"web app user message", Message{Text: "ignored", WebAppData: &WebAppData{Data: `{"type":"user_message","text":"from app"}`}}, "from app"},
		{"web app without text field", Message{WebAppData: &WebAppData{Data: `{"type":"user_message"}`}}, ""},
		{"web app other type", Message{Text: "fallback", WebAppData: &WebAppData{Data: `{"type":"ping","text":"nope"}`}}, "fallback"},
		{"web app malformed", Message{Text: "fallback", WebAppData: &WebAppData{Data: `{oops`}}, "fallback"},
		{"nothing", Message{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.UserText(); got != tt.want {
				t.Fatalf("UserText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_ConversationID(t *testing.T) {
	m := Message{Chat: Chat{ID: -100123}}
	if got := m.ConversationID(); got != "-100123" {
		t.Fatalf("ConversationID() = %q", got)
	}
}

package telegram

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// UpdateKind tells which variant of a webhook update was received.
type UpdateKind string

const (
	KindMessage       UpdateKind = "message"
	KindEditedMessage UpdateKind = "edited_message"
	KindUnknown       UpdateKind = "unknown"
)

// webAppUserMessage is the structured payload type the Mini App sends through web_app_data.
const webAppUserMessage = "user_message"

// Update is the subset of a Bot API update this service understands.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID  int64       `json:"message_id"`
	Chat       Chat        `json:"chat"`
	Date       int64       `json:"date"`
	Text       string      `json:"text,omitempty"`
	WebAppData *WebAppData `json:"web_app_data,omitempty"`
}

// Chat identifies a conversation.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// WebAppData carries the raw string a Mini App passed to sendData.
type WebAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text,omitempty"`
}

type webAppPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DecodeUpdate parses a webhook body. Only syntactically invalid JSON is an error;
// a variant whose shape does not match is dropped, so the update classifies as
// KindUnknown instead of failing.
func DecodeUpdate(body []byte) (Update, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		if json.Valid(body) {
			return Update{}, nil
		}
		return Update{}, err
	}

	var u Update
	if raw, ok := fields["update_id"]; ok {
		_ = json.Unmarshal(raw, &u.UpdateID)
	}
	u.Message = decodeMessage(fields["message"])
	u.EditedMessage = decodeMessage(fields["edited_message"])
	return u, nil
}

// decodeMessage returns nil for absent, null, mistyped, or chat-less messages.
func decodeMessage(raw json.RawMessage) *Message {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil || m.Chat.ID == 0 {
		return nil
	}
	return &m
}

// Kind classifies the update. Anything that is not a plain or edited message is KindUnknown.
func (u Update) Kind() UpdateKind {
	switch {
	case u.Message != nil:
		return KindMessage
	case u.EditedMessage != nil:
		return KindEditedMessage
	default:
		return KindUnknown
	}
}

// ConversationID is the chat id rendered as the key used by the message log.
func (m *Message) ConversationID() string {
	return strconv.FormatInt(m.Chat.ID, 10)
}

// UserText returns the text to answer. A web_app_data payload typed as a user
// message wins over the plain text; malformed payloads fall back to the text.
func (m *Message) UserText() string {
	if m.WebAppData != nil && m.WebAppData.Data != "" {
		var p webAppPayload
		if err := json.Unmarshal([]byte(m.WebAppData.Data), &p); err == nil &&
			p.Type == webAppUserMessage && strings.TrimSpace(p.Text) != "" {
			return p.Text
		}
	}
	return m.Text
}

package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Errors reported by the history read API. Their messages are the reasons returned to clients.
var (
	ErrPayloadRequired       = errors.New("payload required")
	ErrBadSignature          = errors.New("bad signature")
	ErrConversationIDMissing = errors.New("conversation id missing")
)

const hashField = "hash"

// WebAppUser is the user object embedded in Mini App init data.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// InitData is a verified Mini App launch payload.
type InitData struct {
	User         *WebAppUser
	ChatInstance string
	QueryID      string
	AuthDate     int64
}

// ConversationID returns the user id, or the chat instance when no user is embedded.
func (d *InitData) ConversationID() string {
	if d.User != nil && d.User.ID != 0 {
		return strconv.FormatInt(d.User.ID, 10)
	}
	return d.ChatInstance
}

func secretKey(botToken string) []byte {
	sum := sha256.Sum256([]byte("WebAppData" + botToken))
	return sum[:]
}

// dataCheckString joins every field but hash as sorted key=value lines.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != hashField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	return strings.Join(lines, "\n")
}

// Sign computes the hash field for values with the given bot token.
func Sign(botToken string, values url.Values) string {
	mac := hmac.New(sha256.New, secretKey(botToken))
	mac.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyInitData reports whether initData carries a hash produced by Sign with botToken.
func VerifyInitData(botToken, initData string) bool {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return false
	}
	got := values.Get(hashField)
	if got == "" {
		return false
	}
	want := Sign(botToken, values)
	return hmac.Equal([]byte(want), []byte(got))
}

// ParseInitData verifies initData and decodes the fields the read API needs.
func ParseInitData(botToken, initData string) (*InitData, error) {
	if initData == "" {
		return nil, ErrPayloadRequired
	}
	if !VerifyInitData(botToken, initData) {
		return nil, ErrBadSignature
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrBadSignature
	}

	d := &InitData{
		ChatInstance: values.Get("chat_instance"),
		QueryID:      values.Get("query_id"),
	}
	if raw := values.Get("auth_date"); raw != "" {
		if d.AuthDate, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid auth_date: %w", err)
		}
	}
	if raw := values.Get("user"); raw != "" {
		var u WebAppUser
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("failed to decode init data user: %w", err)
		}
		d.User = &u
	}
	if d.ConversationID() == "" {
		return nil, ErrConversationIDMissing
	}
	return d, nil
}

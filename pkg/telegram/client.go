// Package telegram provides the Bot API client, webhook update decoding, and
// Mini App init data verification.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client defines the Bot API calls the bridge makes.
type Client interface {
	// SendMessage sends text to chatID. An empty parseMode sends plain text.
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) error
	// SetWebhook registers webhookURL as the webhook; a non-empty secret is echoed back
	// by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
	SetWebhook(ctx context.Context, webhookURL, secret string) error
}

type botClient struct {
	apiBase    string
	httpClient *http.Client
}

// NewClient creates a Bot API client. apiBase is the server root, e.g. "https://api.telegram.org".
func NewClient(apiBase, botToken string, requestTimeout time.Duration) Client {
	return &botClient{
		apiBase:    strings.TrimRight(apiBase, "/") + "/bot" + botToken,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// apiResponse is the generic Bot API response wrapper.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates"`
}

func (c *botClient) SendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text, ParseMode: parseMode})
}

func (c *botClient) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            webhookURL,
		SecretToken:    secret,
		AllowedUpdates: []string{"message", "edited_message"},
	})
}

func (c *botClient) call(ctx context.Context, method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error 会带上完整 URL，而 URL 里包含 bot token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("telegram %s returned status %d with unparsable body", method, resp.StatusCode)
	}
	if !parsed.OK || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram %s failed: status=%d code=%d description=%s", method, resp.StatusCode, parsed.ErrorCode, parsed.Description)
	}
	return nil
}

// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"encoding/json"
	"time"
)

// UpdateTask is a webhook update queued for asynchronous handling.
// Update keeps the raw Bot API body so the consumer decodes it exactly as the webhook would.
type UpdateTask struct {
	ConversationID string          `json:"conversation_id"`
	UpdateID       int64           `json:"update_id"`
	Update         json.RawMessage `json:"update"`
	ReceivedAt     time.Time       `json:"received_at"`
}

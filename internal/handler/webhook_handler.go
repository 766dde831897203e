package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"chat-bridge-go/pkg/log"
	"chat-bridge-go/pkg/tasks"
	"chat-bridge-go/pkg/telegram"

	"github.com/gin-gonic/gin"
)

// UpdateProcessor 同步处理一条 webhook 更新。
type UpdateProcessor interface {
	HandleUpdate(ctx context.Context, update telegram.Update) error
}

// UpdatePublisher 把更新放入异步队列。
type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, task tasks.UpdateTask) error
}

// WebhookHandler 接收 Bot API 推送的更新。
type WebhookHandler struct {
	processor UpdateProcessor
	publisher UpdatePublisher
}

// NewWebhookHandler 创建一个新的 WebhookHandler。publisher 为 nil 时在请求内同步处理。
func NewWebhookHandler(processor UpdateProcessor, publisher UpdatePublisher) *WebhookHandler {
	return &WebhookHandler{processor: processor, publisher: publisher}
}

// Receive 处理 webhook 请求。成功或无需处理时返回 {"ok":true}。
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	update, err := telegram.DecodeUpdate(body)
	if err != nil {
		log.Warnf("webhook 请求体无法解析: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	// 只有新消息需要排队，其余类型在请求内确认即可
	if h.publisher != nil && update.Kind() == telegram.KindMessage {
		task := tasks.UpdateTask{
			ConversationID: update.Message.ConversationID(),
			UpdateID:       update.UpdateID,
			Update:         body,
			ReceivedAt:     time.Now(),
		}
		if err := h.publisher.PublishUpdate(c.Request.Context(), task); err != nil {
			log.Errorw("更新入队失败", "updateId", update.UpdateID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.processor.HandleUpdate(c.Request.Context(), update); err != nil {
		log.Errorw("处理 webhook 更新失败", "updateId", update.UpdateID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

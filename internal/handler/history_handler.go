// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"chat-bridge-go/internal/service"
	"chat-bridge-go/pkg/log"
	"chat-bridge-go/pkg/telegram"

	"github.com/gin-gonic/gin"
)

// HistoryHandler 处理 Mini App 读取会话历史的请求。
type HistoryHandler struct {
	service  service.HistoryService
	botToken string
}

// NewHistoryHandler 创建一个新的 HistoryHandler。
func NewHistoryHandler(service service.HistoryService, botToken string) *HistoryHandler {
	return &HistoryHandler{service: service, botToken: botToken}
}

type historyRequest struct {
	InitData string `json:"initData"`
}

// GetHistory 校验 initData 签名，返回对应会话的逻辑消息列表。
// GET 从 query 参数 initData 读取，POST 从 JSON body 读取。
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	initData := c.Query("initData")
	if initData == "" && c.Request.Method == http.MethodPost {
		var req historyRequest
		// body 为空或不是 JSON 时按缺少 payload 处理
		if err := c.ShouldBindJSON(&req); err == nil {
			initData = req.InitData
		}
	}

	data, err := telegram.ParseInitData(h.botToken, initData)
	if err != nil {
		status := initDataStatus(err)
		if status == http.StatusInternalServerError {
			log.Errorf("解析 initData 失败: %v", err)
		}
		c.JSON(status, gin.H{
			"code":    status,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), data.ConversationID())
	if err != nil {
		log.Errorw("读取会话历史失败", "conversationId", data.ConversationID(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    history,
	})
}

func initDataStatus(err error) int {
	switch {
	case errors.Is(err, telegram.ErrPayloadRequired), errors.Is(err, telegram.ErrConversationIDMissing):
		return http.StatusBadRequest
	case errors.Is(err, telegram.ErrBadSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

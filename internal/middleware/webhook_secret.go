// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"crypto/subtle"
	"net/http"

	"chat-bridge-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// TelegramSecretHeader 是 Telegram 回传 setWebhook 时所设 secret_token 的请求头。
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecret 创建一个 Gin 中间件，校验 webhook 请求携带的 secret token。
// secret 为空时不做校验。
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(TelegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			log.Warnw("webhook secret token 不匹配", "clientIP", c.ClientIP(), "present", got != "")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
			return
		}
		c.Next()
	}
}

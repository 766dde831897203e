// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"time"

	"chat-bridge-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 是请求 id 的请求头和响应头名称。
const RequestIDHeader = "X-Request-ID"

// 请求体和响应体在日志中最多保留的字节数。
const maxLoggedBody = 1024

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

const redactedBody = "[redacted]"

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志，并为每个请求分配 request id。
// redactedPaths 中的路径不记录请求体和响应体（例如携带 initData 的历史读取接口）。
func RequestLogger(redactedPaths ...string) gin.HandlerFunc {
	redacted := make(map[string]struct{}, len(redactedPaths))
	for _, p := range redactedPaths {
		redacted[p] = struct{}{}
	}
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestId", requestID)
		c.Header(RequestIDHeader, requestID)

		// 读取并重新缓存请求体，以便后续处理函数可以正常读取
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		reqLogged, respLogged := truncateBody(requestBody), truncateBody(blw.body.Bytes())
		if _, ok := redacted[c.Request.URL.Path]; ok {
			reqLogged, respLogged = redactedBody, redactedBody
		}

		log.Infow("HTTP Request Log",
			"requestId", requestID,
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", reqLogged,
			"responseBody", respLogged,
		)
	}
}

func truncateBody(b []byte) string {
	if len(b) <= maxLoggedBody {
		return string(b)
	}
	return string(b[:maxLoggedBody]) + "...(truncated)"
}

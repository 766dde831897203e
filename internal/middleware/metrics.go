package middleware

import (
	"strconv"
	"time"

	"chat-bridge-go/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 记录每个请求的次数和耗时，route 使用注册的路由模板，未匹配的请求记为 unmatched。
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

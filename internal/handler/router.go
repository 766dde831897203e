package handler

import (
	"net/http"

	"chat-bridge-go/internal/middleware"
	"chat-bridge-go/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// HistoryPath 是历史读取接口的路径，请求中带有用户的 initData。
const HistoryPath = "/api/v1/history"

// RouterOptions 汇总注册路由所需的 handler 和中间件配置。
type RouterOptions struct {
	History *HistoryHandler
	Webhook *WebhookHandler
	Health  *HealthHandler

	WebhookSecret string
	Metrics       *metrics.Metrics
	// MetricsHandler 为 nil 时不暴露指标端点。
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter 创建路由引擎并注册所有路由。
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(HistoryPath), middleware.Metrics(opts.Metrics), gin.Recovery())

	r.GET("/healthz", opts.Health.Check)
	if opts.MetricsHandler != nil {
		r.GET(opts.MetricsPath, gin.WrapH(opts.MetricsHandler))
	}

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/history", opts.History.GetHistory)
		apiV1.POST("/history", opts.History.GetHistory)

		telegram := apiV1.Group("/telegram")
		telegram.Use(middleware.WebhookSecret(opts.WebhookSecret))
		{
			telegram.POST("/webhook", opts.Webhook.Receive)
		}
	}
	return r
}

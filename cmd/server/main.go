// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-bridge-go/internal/config"
	"chat-bridge-go/internal/handler"
	"chat-bridge-go/internal/repository"
	"chat-bridge-go/internal/service"
	"chat-bridge-go/pkg/database"
	"chat-bridge-go/pkg/kafka"
	"chat-bridge-go/pkg/llm"
	"chat-bridge-go/pkg/log"
	"chat-bridge-go/pkg/metrics"
	"chat-bridge-go/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "./configs", "config.yaml 所在目录")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库初始化失败", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}

	// 4. 初始化 Repository
	messageRepo := repository.NewMessageRepository(db)
	locker := repository.NewLocalConversationLocker()
	historyCache := repository.NewNopHistoryCache()
	if rdb != nil {
		defer rdb.Close()
		locker = repository.NewRedisConversationLocker(rdb, cfg.Redis.LockTTL)
		historyCache = repository.NewHistoryCache(rdb, cfg.Redis.HistoryTTL)
	}

	// 5. 初始化指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	// 6. 初始化客户端和 Service (依赖注入)
	bot := telegram.NewClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.RequestTimeout)
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatal("LLM 客户端初始化失败", err)
	}
	historyService := service.NewHistoryService(messageRepo, historyCache, appMetrics)
	bridgeService := service.NewBridgeService(messageRepo, locker, historyCache, bot, llmClient, appMetrics, service.BridgeOptions{
		ParseMode: cfg.Telegram.ParseMode,
		ChunkSize: cfg.Chat.ChunkSize,
	})

	// 7. 启用异步模式时启动 Kafka 生产者和消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	var publisher handler.UpdatePublisher
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = producer
		go func() {
			defer close(consumerDone)
			kafka.StartConsumer(consumerCtx, cfg.Kafka, bridgeService)
		}()
	} else {
		close(consumerDone)
	}

	// 8. 注册 webhook
	if cfg.Telegram.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Telegram.RequestTimeout)
		if err := bot.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			log.Errorf("setWebhook 失败，继续使用已有的 webhook 配置: %v", err)
		} else {
			log.Infof("webhook 已注册: %s", cfg.Telegram.WebhookURL)
		}
		cancel()
	}

	// 9. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	checks := map[string]handler.Checker{"database": messageRepo.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	routerOpts := handler.RouterOptions{
		History:       handler.NewHistoryHandler(historyService, cfg.Telegram.BotToken),
		Webhook:       handler.NewWebhookHandler(bridgeService, publisher),
		Health:        handler.NewHealthHandler(checks),
		WebhookSecret: cfg.Telegram.WebhookSecret,
		Metrics:       appMetrics,
	}
	if cfg.Metrics.Enabled {
		routerOpts.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		routerOpts.MetricsPath = cfg.Metrics.Path
	}
	r := handler.NewRouter(routerOpts)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止消费者，等待正在处理的消息完成
	stopConsumer()
	select {
	case <-consumerDone:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warnf("Kafka 消费者未在超时时间内退出")
	}
	log.Info("服务已优雅关闭")
}

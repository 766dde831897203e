package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chat-bridge-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// CachedHistory 是一次重建的结果。日志只追加，所以 MessageCount 相同即代表内容相同。
// OpenReply 表示最后一条 turn 是日志末尾未被后续消息结束的回复，它的时间戳取读取时刻，不能缓存。
type CachedHistory struct {
	MessageCount int64        `json:"messageCount"`
	OpenReply    bool         `json:"openReply"`
	Turns        []model.Turn `json:"turns"`
}

// HistoryCache 缓存会话重建后的逻辑消息。messages 表才是权威数据，写入后缓存失效。
type HistoryCache interface {
	// Get 返回缓存的历史；未命中时返回 nil, nil。
	Get(ctx context.Context, conversationID string) (*CachedHistory, error)
	Set(ctx context.Context, conversationID string, history *CachedHistory) error
	Invalidate(ctx context.Context, conversationID string) error
}

type redisHistoryCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewHistoryCache 创建一个 Redis 历史缓存。
func NewHistoryCache(redisClient *redis.Client, ttl time.Duration) HistoryCache {
	return &redisHistoryCache{redisClient: redisClient, ttl: ttl}
}

func (r *redisHistoryCache) key(conversationID string) string {
	return fmt.Sprintf("conversation:%s:history", conversationID)
}

func (r *redisHistoryCache) Get(ctx context.Context, conversationID string) (*CachedHistory, error) {
	jsonData, err := r.redisClient.Get(ctx, r.key(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached history: %w", err)
	}
	var history CachedHistory
	if err := json.Unmarshal(jsonData, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached history: %w", err)
	}
	if history.Turns == nil {
		history.Turns = []model.Turn{}
	}
	return &history, nil
}

func (r *redisHistoryCache) Set(ctx context.Context, conversationID string, history *CachedHistory) error {
	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := r.redisClient.Set(ctx, r.key(conversationID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached history: %w", err)
	}
	return nil
}

func (r *redisHistoryCache) Invalidate(ctx context.Context, conversationID string) error {
	if err := r.redisClient.Del(ctx, r.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached history: %w", err)
	}
	return nil
}

type nopHistoryCache struct{}

// NewNopHistoryCache 返回不缓存任何内容的实现，Redis 未配置时使用。
func NewNopHistoryCache() HistoryCache { return nopHistoryCache{} }

func (nopHistoryCache) Get(context.Context, string) (*CachedHistory, error) { return nil, nil }
func (nopHistoryCache) Set(context.Context, string, *CachedHistory) error   { return nil }
func (nopHistoryCache) Invalidate(context.Context, string) error            { return nil }

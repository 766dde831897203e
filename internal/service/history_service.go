// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"time"

	"chat-bridge-go/internal/model"
	"chat-bridge-go/internal/repository"
	"chat-bridge-go/pkg/log"
	"chat-bridge-go/pkg/metrics"
)

// HistoryService 定义了读取会话历史的接口。
type HistoryService interface {
	GetHistory(ctx context.Context, conversationID string) ([]model.Turn, error)
}

type historyService struct {
	repo    repository.MessageRepository
	cache   repository.HistoryCache
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewHistoryService 创建一个新的 HistoryService。
func NewHistoryService(repo repository.MessageRepository, cache repository.HistoryCache, m *metrics.Metrics) HistoryService {
	if cache == nil {
		cache = repository.NewNopHistoryCache()
	}
	return &historyService{repo: repo, cache: cache, metrics: m, now: time.Now}
}

// GetHistory 返回会话的逻辑消息列表。
// 缓存条目记录了构建时的消息条数，与数据库当前条数一致才算命中；缓存出错只记录日志，以数据库为准。
func (s *historyService) GetHistory(ctx context.Context, conversationID string) ([]model.Turn, error) {
	cached, err := s.cache.Get(ctx, conversationID)
	if err != nil {
		log.Warnw("读取历史缓存失败，回退到数据库", "conversationId", conversationID, "error", err)
		cached = nil
	}
	if cached != nil {
		count, err := s.repo.CountByConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if count == cached.MessageCount {
			s.metrics.ObserveHistoryRead("cache")
			if cached.OpenReply && len(cached.Turns) > 0 {
				cached.Turns[len(cached.Turns)-1].CreatedAt = s.now()
			}
			return cached.Turns, nil
		}
		log.Debugf("历史缓存已过期, conversationId: %s, cached: %d, actual: %d", conversationID, cached.MessageCount, count)
	}

	records, err := s.repo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	turns := ReconstructTurns(records, s.now)
	s.metrics.ObserveHistoryRead("store")

	if err := s.cache.Set(ctx, conversationID, &repository.CachedHistory{
		MessageCount: int64(len(records)),
		OpenReply:    EndsWithOpenReply(records),
		Turns:        turns,
	}); err != nil {
		log.Warnw("写入历史缓存失败", "conversationId", conversationID, "error", err)
	}
	return turns, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"chat-bridge-go/internal/model"
	"chat-bridge-go/internal/repository"
	"chat-bridge-go/pkg/chunk"
	"chat-bridge-go/pkg/llm"
	"chat-bridge-go/pkg/log"
	"chat-bridge-go/pkg/metrics"
	"chat-bridge-go/pkg/telegram"
)

// 更新处理结果，对应 chatbridge_updates_total 的 result 标签。
const (
	UpdateProcessed = "processed"
	UpdateIgnored   = "ignored"
	UpdateFailed    = "failed"
)

// 部分失败发生的阶段。
const (
	stageRespond      = "respond"
	stageSendChunk    = "send_chunk"
	stagePersistChunk = "persist_chunk"
)

const plainMode = "plain"

// BridgeOptions 控制回复的发送方式。
type BridgeOptions struct {
	ParseMode string
	ChunkSize int
}

// BridgeService 处理 Bot 的 webhook 更新：记录用户消息、生成回复、分块发送并逐块落库。
type BridgeService struct {
	repo      repository.MessageRepository
	grouper   *TurnGrouper
	locker    repository.ConversationLocker
	cache     repository.HistoryCache
	bot       telegram.Client
	responder llm.Client
	metrics   *metrics.Metrics
	opts      BridgeOptions
}

// NewBridgeService 创建一个新的 BridgeService。locker 和 cache 为 nil 时使用进程内锁和空缓存。
func NewBridgeService(
	repo repository.MessageRepository,
	locker repository.ConversationLocker,
	cache repository.HistoryCache,
	bot telegram.Client,
	responder llm.Client,
	m *metrics.Metrics,
	opts BridgeOptions,
) *BridgeService {
	if locker == nil {
		locker = repository.NewLocalConversationLocker()
	}
	if cache == nil {
		cache = repository.NewNopHistoryCache()
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = chunk.DefaultLimit
	}
	return &BridgeService{
		repo:      repo,
		grouper:   NewTurnGrouper(repo),
		locker:    locker,
		cache:     cache,
		bot:       bot,
		responder: responder,
		metrics:   m,
		opts:      opts,
	}
}

// HandleUpdate 处理一条 webhook 更新。只处理新消息，编辑消息和未知类型直接确认。
// 返回错误时调用方应回复 500；本方法不做任何重试或补偿。
func (s *BridgeService) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if kind := update.Kind(); kind != telegram.KindMessage {
		log.Debugf("忽略更新, update_id: %d, kind: %s", update.UpdateID, kind)
		s.metrics.ObserveUpdate(UpdateIgnored)
		return nil
	}
	msg := update.Message
	text := msg.UserText()
	if text == "" {
		log.Debugf("消息没有文本，忽略, update_id: %d", update.UpdateID)
		s.metrics.ObserveUpdate(UpdateIgnored)
		return nil
	}

	if err := s.processMessage(ctx, msg, text); err != nil {
		s.metrics.ObserveUpdate(UpdateFailed)
		return err
	}
	s.metrics.ObserveUpdate(UpdateProcessed)
	return nil
}

func (s *BridgeService) processMessage(ctx context.Context, msg *telegram.Message, text string) error {
	conversationID := msg.ConversationID()

	unlock, err := s.locker.Lock(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to lock conversation %s: %w", conversationID, err)
	}
	defer unlock()

	groupID, err := s.grouper.NextGroupID(ctx, conversationID)
	if err != nil {
		return err
	}

	userMsg := &model.Message{ConversationID: conversationID, Role: model.RoleUser, Content: text, GroupID: groupID}
	if err := s.repo.Create(ctx, userMsg); err != nil {
		return err
	}
	// 已有数据写入，无论后续是否成功都让缓存失效（仍在锁内执行）。
	defer s.invalidate(conversationID)

	reply, err := s.responder.Complete(ctx, text)
	if err != nil {
		log.Errorw("生成回复失败，用户消息已保存但没有回复",
			"conversationId", conversationID, "groupId", groupID, "error", err)
		s.metrics.ObservePartialFailure(stageRespond)
		return fmt.Errorf("failed to generate reply: %w", err)
	}

	chunks := chunk.Split(reply, s.opts.ChunkSize)
	// 分块一旦发出就必须落库，不受请求取消影响。
	persistCtx := context.WithoutCancel(ctx)
	for i, part := range chunks {
		if err := s.sendChunk(ctx, msg.Chat.ID, part); err != nil {
			log.Errorw("发送回复分块失败，剩余分块放弃",
				"conversationId", conversationID, "groupId", groupID,
				"chunk", i+1, "chunks", len(chunks), "error", err)
			s.metrics.ObservePartialFailure(stageSendChunk)
			return fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}

		assistantMsg := &model.Message{ConversationID: conversationID, Role: model.RoleAssistant, Content: part, GroupID: groupID}
		if err := s.repo.Create(persistCtx, assistantMsg); err != nil {
			log.Errorw("回复分块已发送但保存失败",
				"conversationId", conversationID, "groupId", groupID,
				"chunk", i+1, "chunks", len(chunks), "error", err)
			s.metrics.ObservePartialFailure(stagePersistChunk)
			return fmt.Errorf("failed to persist chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	log.Infow("消息处理完成", "conversationId", conversationID, "groupId", groupID, "chunks", len(chunks))
	return nil
}

// sendChunk 先按配置的 parse mode 发送，失败后以纯文本重试一次；第二次失败直接返回。
func (s *BridgeService) sendChunk(ctx context.Context, chatID int64, text string) error {
	err := s.bot.SendMessage(ctx, chatID, text, s.opts.ParseMode)
	if err == nil {
		s.metrics.ObserveChunkSent(modeLabel(s.opts.ParseMode))
		return nil
	}
	if s.opts.ParseMode == "" {
		return err
	}

	log.Warnw("格式化发送失败，改用纯文本重试", "chatId", chatID, "parseMode", s.opts.ParseMode, "error", err)
	s.metrics.ObserveSendFallback()
	if err := s.bot.SendMessage(ctx, chatID, text, ""); err != nil {
		return fmt.Errorf("plain-text retry failed: %w", err)
	}
	s.metrics.ObserveChunkSent(plainMode)
	return nil
}

func (s *BridgeService) invalidate(conversationID string) {
	if err := s.cache.Invalidate(context.Background(), conversationID); err != nil {
		log.Warnw("历史缓存失效失败", "conversationId", conversationID, "error", err)
	}
}

func modeLabel(parseMode string) string {
	if parseMode == "" {
		return plainMode
	}
	return strings.ToLower(parseMode)
}

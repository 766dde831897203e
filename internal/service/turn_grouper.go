package service

import (
	"context"
	"fmt"

	"chat-bridge-go/internal/repository"
)

// TurnGrouper 为每条新到达的用户消息分配会话内递增的 group_id。
// 每次都重新读取数据库，不做缓存；调用方需持有会话锁，保证读到的最大值在写入前不变。
type TurnGrouper struct {
	repo repository.MessageRepository
}

// NewTurnGrouper 创建一个新的 TurnGrouper。
func NewTurnGrouper(repo repository.MessageRepository) *TurnGrouper {
	return &TurnGrouper{repo: repo}
}

// NextGroupID 返回会话当前最大 group_id + 1，空会话返回 1。
// 读取失败时返回错误，绝不退回默认值 1，否则新回答可能被并入已有分组。
func (g *TurnGrouper) NextGroupID(ctx context.Context, conversationID string) (int64, error) {
	maxGroup, err := g.repo.MaxGroupID(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next group id for conversation %s: %w", conversationID, err)
	}
	return maxGroup + 1, nil
}

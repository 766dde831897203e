// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"

	"chat-bridge-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 定义了消息日志的持久化操作。日志只追加，不提供更新和删除。
type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	// MaxGroupID 返回会话中最大的 group_id，会话为空时返回 0。
	MaxGroupID(ctx context.Context, conversationID string) (int64, error)
	// ListByConversation 按插入顺序（自增 id 升序）返回会话的全部消息。
	ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
	Ping(ctx context.Context) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 插入一条消息，ID 和 CreatedAt 由数据库/GORM 填充。
func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to insert %s message: %w", message.Role, err)
	}
	return nil
}

func (r *messageRepository) MaxGroupID(ctx context.Context, conversationID string) (int64, error) {
	var maxGroup int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("COALESCE(MAX(group_id), 0)").
		Where("conversation_id = ?", conversationID).
		Scan(&maxGroup).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max group id: %w", err)
	}
	return maxGroup, nil
}

// ListByConversation 的顺序以 id 为准，created_at 只作参考，避免时钟精度相同时打乱分块顺序。
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (r *messageRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

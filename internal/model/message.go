// Package model 包含了应用的数据模型定义。
package model

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 对应 messages 表中的一行，插入后不再修改。
// assistant 行是一条回复的其中一个分块；user 行是完整的用户消息。
// 同一会话中 GroupID 把一条用户消息和回答它的全部分块绑在一起。
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"type:varchar(64);not null;index:idx_messages_conv_group,priority:1" json:"conversationId"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	GroupID        int64     `gorm:"not null;index:idx_messages_conv_group,priority:2" json:"groupId"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// Turn 是返回给客户端的一条逻辑消息：一条用户消息，或合并后的一条完整助手回复。
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	GroupID   int64     `json:"groupId"`
	CreatedAt time.Time `json:"createdAt"`
}

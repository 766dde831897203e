package service

import (
	"strings"
	"time"

	"chat-bridge-go/internal/model"
)

// ReconstructTurns 把按插入顺序排列的原始消息合并成逻辑消息。
// 连续、同 group 的 assistant 分块合并为一条；遇到 user 消息或 group 变化时开始新的一条。
// now 只在缓冲区的时间戳无从借用时使用（日志末尾的回复，或缺失 created_at 的分块）。
func ReconstructTurns(records []model.Message, now func() time.Time) []model.Turn {
	turns := make([]model.Turn, 0, len(records))

	var (
		buffer       []string
		lastBuffered time.Time
		lastRole     string
		currentGroup int64
	)
	flush := func(at time.Time) {
		if len(buffer) == 0 {
			return
		}
		turns = append(turns, model.Turn{
			Role:      model.RoleAssistant,
			Content:   strings.Join(buffer, ""),
			GroupID:   currentGroup,
			CreatedAt: at,
		})
		buffer = nil
	}

	for _, rec := range records {
		switch rec.Role {
		case model.RoleUser:
			if len(buffer) > 0 {
				at := lastBuffered
				if at.IsZero() {
					at = now()
				}
				flush(at)
			}
			turns = append(turns, model.Turn{
				Role:      rec.Role,
				Content:   rec.Content,
				GroupID:   rec.GroupID,
				CreatedAt: rec.CreatedAt,
			})
			lastRole = model.RoleUser
			currentGroup = rec.GroupID

		case model.RoleAssistant:
			if lastRole == model.RoleUser || rec.GroupID != currentGroup {
				// 没有"下一条"可借时间戳，上一段回复用当前分块的时间结束
				flush(rec.CreatedAt)
				buffer = []string{rec.Content}
			} else {
				buffer = append(buffer, rec.Content)
			}
			lastBuffered = rec.CreatedAt
			lastRole = model.RoleAssistant
			currentGroup = rec.GroupID
		}
	}

	flush(now())
	return turns
}

// EndsWithOpenReply 报告 ReconstructTurns 的最后一条 turn 是否在遍历结束时才输出，
// 即日志以 assistant 分块结尾；这条 turn 的时间戳来自 now()。
func EndsWithOpenReply(records []model.Message) bool {
	for i := len(records) - 1; i >= 0; i-- {
		switch records[i].Role {
		case model.RoleAssistant:
			return true
		case model.RoleUser:
			return false
		}
	}
	return false
}

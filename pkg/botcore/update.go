package botcore

import "github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"

// ChatType 取值。
const (
	ChatTypeGroup   = "group"
	ChatTypePrivate = "private"
)

// MetaPlatform 是 Metadata 中记录来源平台的键。
const MetaPlatform = "platform"

// Update 描述任意聊天/机器人平台上的标准化事件。
type Update struct {
	ID       string            // 平台内的唯一消息或事件 ID
	SenderID string            // 触发用户标识
	ChatID   string            // 会话 ID（群号或私聊对端）
	ChatType string            // 会话类型：group/private
	Text     string            // 全部文本段拼接后的内容
	Message  message.Chain     // 完整消息链
	Raw      interface{}       // 平台原始结构引用，便于 Handler 深度使用
	Metadata map[string]string // 扩展键值，如平台名等
}

// IsGroup 判断事件是否来自群聊。
func (u Update) IsGroup() bool {
	return u.ChatType == ChatTypeGroup
}

// Platform 返回来源平台名称。
func (u Update) Platform() string {
	return u.Metadata[MetaPlatform]
}

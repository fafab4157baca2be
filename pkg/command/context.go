package command

import (
	"context"
	"fmt"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
)

// keyExecutionContext 是 context.Context 中存储 ExecutionContext 的键。
type keyExecutionContext struct{}

// ExecutionContext 为命令 handler 提供必要的环境信息。
type ExecutionContext struct {
	Update   botcore.Update
	StreamID string
	Parsed   ParseResult

	// sendSignal 是一个回调函数，允许 Command 立即向 Pipeline 发送终结信号
	sendSignal func(chunk botcore.StreamChunk)
}

// SetNoResponse 立即发送静默信号，平台层收到后不再回复会话。
func (ctx *ExecutionContext) SetNoResponse() {
	if ctx.sendSignal != nil {
		ctx.sendSignal(botcore.StreamChunk{
			Payload: botcore.NoResponse,
			IsFinal: true,
		})
	}
}

// ConversationKey 返回当前会话与用户组合的唯一 key，用于日志关联。
func (ctx *ExecutionContext) ConversationKey() string {
	if ctx == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s", ctx.Update.ChatID, ctx.Update.SenderID)
}

// WithExecutionContext 将 ExecutionContext 注入到标准 context.Context 中。
func WithExecutionContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	return context.WithValue(ctx, keyExecutionContext{}, execCtx)
}

// FromContext 从标准 context.Context 中提取 ExecutionContext。
func FromContext(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	val, _ := ctx.Value(keyExecutionContext{}).(*ExecutionContext)
	return val
}

package botcore

import "context"

// StreamChunk 描述流水线输出片段。
type StreamChunk struct {
	Content string
	Payload interface{} // 扩展：携带平台相关的完整回复对象，替代文本
	IsFinal bool
}

// NoResponse 是一个哨兵值，用于标记不需要回复。
// 当 StreamChunk.Payload == NoResponse 时，平台层不向会话发送任何内容。
var NoResponse = struct{}{}

// PipelineInvoker 抽象命令/业务执行器。
// 返回的通道由实现方关闭；ctx 结束后实现方应尽快停止产出。
type PipelineInvoker interface {
	Trigger(ctx context.Context, update Update, streamID string) <-chan StreamChunk
}

// PipelineFunc 便于直接以函数充当 PipelineInvoker。
type PipelineFunc func(ctx context.Context, update Update, streamID string) <-chan StreamChunk

// Trigger 实现 PipelineInvoker 接口。
func (f PipelineFunc) Trigger(ctx context.Context, update Update, streamID string) <-chan StreamChunk {
	if f == nil {
		return nil
	}
	return f(ctx, update, streamID)
}

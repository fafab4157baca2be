package botcore

// Emitter 将流水线产出的回复片段转换为平台可执行的发送请求。
type Emitter interface {
	Encode(update Update, streamID string, chunk StreamChunk) (interface{}, error)
}

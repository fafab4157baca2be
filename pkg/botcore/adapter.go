package botcore

// Adapter 将平台原始事件映射为标准 Update。
type Adapter interface {
	Normalize(raw interface{}) (Update, error)
}

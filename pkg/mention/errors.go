package mention

import (
	"errors"
	"fmt"
)

// 需要以纯文本回复给调用者的错误。
var (
	ErrMalformedCommand = errors.New("malformed command")
	ErrNoGroupContext   = errors.New("group context required")
	ErrQuotaExhausted   = errors.New("at-all quota exhausted")
)

// UserError 表示可直接展示给调用者的错误。
type UserError interface {
	error
	UserMessage() string
}

// MalformedCommandError 命令格式错误。
type MalformedCommandError struct {
	Marker string
}

func (e *MalformedCommandError) Error() string { return ErrMalformedCommand.Error() }

func (e *MalformedCommandError) Is(target error) bool { return target == ErrMalformedCommand }

// UserMessage 实现 UserError。
func (e *MalformedCommandError) UserMessage() string {
	return fmt.Sprintf("指令格式错误，请使用 `%s [群ID] 目标用户 [内容]` 的格式。", e.Marker)
}

// NoGroupContextError 非群聊中调用且未指定群号。
type NoGroupContextError struct{}

func (e *NoGroupContextError) Error() string { return ErrNoGroupContext.Error() }

func (e *NoGroupContextError) Is(target error) bool { return target == ErrNoGroupContext }

// UserMessage 实现 UserError。
func (e *NoGroupContextError) UserMessage() string {
	return "当前指令只能在群聊中使用，请在群聊中使用此指令。"
}

// QuotaExhaustedError 目标群内 @全体成员 剩余次数为 0。
type QuotaExhaustedError struct {
	GroupID string
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("%s: group %s", ErrQuotaExhausted.Error(), e.GroupID)
}

func (e *QuotaExhaustedError) Is(target error) bool { return target == ErrQuotaExhausted }

// UserMessage 实现 UserError。
func (e *QuotaExhaustedError) UserMessage() string {
	return fmt.Sprintf("当前bot在群聊: %s 中，可用@全体成员的次数为0，请稍后再试。", e.GroupID)
}

// UserMessage 提取错误链中的用户提示文案。
func UserMessage(err error) (string, bool) {
	var ue UserError
	if errors.As(err, &ue) {
		return ue.UserMessage(), true
	}
	return "", false
}

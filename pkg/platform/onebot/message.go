package onebot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"
)

// Platform 是写入 Update.Metadata 的平台名称。
const Platform = "onebot"

// post_type / message_type 取值。
const (
	PostTypeMessage   = "message"
	PostTypeMetaEvent = "meta_event"

	MessageTypeGroup   = "group"
	MessageTypePrivate = "private"
)

// 本项目用到的 OneBot 动作。
const (
	ActionSendGroupMsg        = "send_group_msg"
	ActionSendPrivateMsg      = "send_private_msg"
	ActionGetGroupAtAllRemain = "get_group_at_all_remain"
)

// ErrClosed 表示连接已关闭，调用无法完成。
var ErrClosed = errors.New("onebot connection closed")

// ErrNotConnected 表示当前没有可用连接。
var ErrNotConnected = errors.New("onebot not connected")

// Event 表示 OneBot v11 上报的事件。只解析本项目关心的字段。
type Event struct {
	Time          int64         `json:"time"`
	SelfID        int64         `json:"self_id"`
	PostType      string        `json:"post_type"`
	MessageType   string        `json:"message_type,omitempty"`
	SubType       string        `json:"sub_type,omitempty"`
	MessageID     int64         `json:"message_id,omitempty"`
	UserID        int64         `json:"user_id,omitempty"`
	GroupID       int64         `json:"group_id,omitempty"`
	Message       message.Chain `json:"message,omitempty"`
	RawMessage    string        `json:"raw_message,omitempty"`
	Sender        *Sender       `json:"sender,omitempty"`
	MetaEventType string        `json:"meta_event_type,omitempty"`
}

// Sender 发送者信息。
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Role     string `json:"role,omitempty"` // owner/admin/member，仅群消息
}

// APIRequest 是 WebSocket 上发送的动作请求。
type APIRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params,omitempty"`
	Echo   string      `json:"echo,omitempty"`
}

// APIResponse 是动作响应。
type APIResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Wording string          `json:"wording,omitempty"`
	Echo    string          `json:"echo,omitempty"`
}

// Err 将失败响应转换为 *APIError，成功返回 nil。
// retcode 0 为成功，retcode 1 且 status=async 表示已异步受理。
func (r APIResponse) Err(action string) error {
	switch {
	case r.RetCode == 0 && r.Status != "failed":
		return nil
	case r.RetCode == 1 && r.Status == "async":
		return nil
	}
	msg := r.Wording
	if msg == "" {
		msg = r.Message
	}
	return &APIError{Action: action, Status: r.Status, RetCode: r.RetCode, Message: msg}
}

// APIError 表示 OneBot 实现端返回的失败结果。
type APIError struct {
	Action  string
	Status  string
	RetCode int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("onebot %s failed: status=%s retcode=%d", e.Action, e.Status, e.RetCode)
	}
	return fmt.Sprintf("onebot %s failed: status=%s retcode=%d message=%s", e.Action, e.Status, e.RetCode, e.Message)
}

// Action 是 ReplyEmitter 产出的待执行动作。
type Action struct {
	Name   string
	Params interface{}
}

// SendGroupMsgParams send_group_msg 参数。
type SendGroupMsgParams struct {
	GroupID int64         `json:"group_id"`
	Message message.Chain `json:"message"`
}

// SendPrivateMsgParams send_private_msg 参数。
type SendPrivateMsgParams struct {
	UserID  int64         `json:"user_id"`
	Message message.Chain `json:"message"`
}

// GroupParams 只携带群号的参数。
type GroupParams struct {
	GroupID int64 `json:"group_id"`
}

// SendResult 发送消息动作的返回数据。
type SendResult struct {
	MessageID int64 `json:"message_id"`
}

// AtAllRemain get_group_at_all_remain 的返回数据。
type AtAllRemain struct {
	CanAtAll       bool `json:"can_at_all"`
	RemainForGroup int  `json:"remain_at_all_count_for_group"`
	RemainForUin   int  `json:"remain_at_all_count_for_uin"`
}

// ParseEvent 将上报 JSON 解析为 Event。
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

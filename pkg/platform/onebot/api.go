package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"
)

// API 在 Caller 之上提供带类型的 OneBot 动作。
// 它同时实现 mention.Platform。
type API struct {
	caller Caller
}

// NewAPI 绑定动作执行器。
func NewAPI(caller Caller) *API {
	return &API{caller: caller}
}

// SendGroupMsg 发送群消息。
func (a *API) SendGroupMsg(ctx context.Context, groupID string, msg message.Chain) (SendResult, error) {
	gid, err := parseID("group_id", groupID)
	if err != nil {
		return SendResult{}, err
	}
	return a.send(ctx, ActionSendGroupMsg, SendGroupMsgParams{GroupID: gid, Message: msg})
}

// SendPrivateMsg 发送私聊消息。
func (a *API) SendPrivateMsg(ctx context.Context, userID string, msg message.Chain) (SendResult, error) {
	uid, err := parseID("user_id", userID)
	if err != nil {
		return SendResult{}, err
	}
	return a.send(ctx, ActionSendPrivateMsg, SendPrivateMsgParams{UserID: uid, Message: msg})
}

// GetGroupAtAllRemain 查询机器人在群内 @全体成员 的剩余次数。
func (a *API) GetGroupAtAllRemain(ctx context.Context, groupID string) (AtAllRemain, error) {
	gid, err := parseID("group_id", groupID)
	if err != nil {
		return AtAllRemain{}, err
	}
	data, err := a.caller.Call(ctx, ActionGetGroupAtAllRemain, GroupParams{GroupID: gid})
	if err != nil {
		return AtAllRemain{}, err
	}
	var out AtAllRemain
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return AtAllRemain{}, fmt.Errorf("decode %s data: %w", ActionGetGroupAtAllRemain, err)
		}
	}
	return out, nil
}

// RemainingAtAll 返回机器人账号自身的剩余次数，缺失时为 0。
func (a *API) RemainingAtAll(ctx context.Context, groupID string) (int, error) {
	remain, err := a.GetGroupAtAllRemain(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return remain.RemainForUin, nil
}

// SendGroupMessage 发送群消息，忽略返回的消息 ID。
func (a *API) SendGroupMessage(ctx context.Context, groupID string, msg message.Chain) error {
	_, err := a.SendGroupMsg(ctx, groupID, msg)
	return err
}

func (a *API) send(ctx context.Context, action string, params interface{}) (SendResult, error) {
	data, err := a.caller.Call(ctx, action, params)
	if err != nil {
		return SendResult{}, err
	}
	var out SendResult
	if len(data) > 0 {
		// 部分实现返回字符串形式的 message_id，解析失败不影响发送结果。
		_ = json.Unmarshal(data, &out)
	}
	return out, nil
}

func parseID(field, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return id, nil
}

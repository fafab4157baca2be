package onebot

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"
)

// MessageAdapter 将 OneBot 消息事件映射为通用 Update。
type MessageAdapter struct{}

// Normalize 实现 botcore.Adapter。
func (MessageAdapter) Normalize(raw interface{}) (botcore.Update, error) {
	ev, ok := raw.(*Event)
	if !ok || ev == nil {
		return botcore.Update{}, errors.New("invalid onebot event")
	}
	if ev.PostType != PostTypeMessage {
		return botcore.Update{}, fmt.Errorf("unsupported post_type %q", ev.PostType)
	}

	meta := map[string]string{
		botcore.MetaPlatform: Platform,
		"message_type":       ev.MessageType,
		"sub_type":           ev.SubType,
		"self_id":            strconv.FormatInt(ev.SelfID, 10),
	}
	if ev.Sender != nil && ev.Sender.Role != "" {
		meta["sender_role"] = ev.Sender.Role
	}

	update := botcore.Update{
		ID:       strconv.FormatInt(ev.MessageID, 10),
		SenderID: strconv.FormatInt(ev.UserID, 10),
		Text:     ev.Message.PlainText(),
		Message:  ev.Message,
		Raw:      ev,
		Metadata: meta,
	}
	switch ev.MessageType {
	case MessageTypeGroup:
		update.ChatType = botcore.ChatTypeGroup
		update.ChatID = strconv.FormatInt(ev.GroupID, 10)
	case MessageTypePrivate:
		update.ChatType = botcore.ChatTypePrivate
		update.ChatID = update.SenderID
	default:
		return botcore.Update{}, fmt.Errorf("unsupported message_type %q", ev.MessageType)
	}
	if update.Text == "" && ev.RawMessage != "" && len(ev.Message) == 0 {
		// 兼容只填 raw_message 的实现
		update.Message = message.ParseCQ(ev.RawMessage)
		update.Text = update.Message.PlainText()
	}
	return update, nil
}

// ReplyEmitter 将回复片段编码为向原会话发送消息的 Action。
type ReplyEmitter struct{}

// Encode 实现 botcore.Emitter。Payload 已经是 Action 时原样返回。
func (ReplyEmitter) Encode(update botcore.Update, streamID string, chunk botcore.StreamChunk) (interface{}, error) {
	if act, ok := chunk.Payload.(Action); ok {
		return act, nil
	}
	if chunk.Payload != nil {
		return nil, fmt.Errorf("unsupported payload type %T", chunk.Payload)
	}

	id, err := strconv.ParseInt(update.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id %q: %w", update.ChatID, err)
	}
	msg := message.Chain{message.Text{Text: chunk.Content}}

	if update.IsGroup() {
		return Action{Name: ActionSendGroupMsg, Params: SendGroupMsgParams{GroupID: id, Message: msg}}, nil
	}
	return Action{Name: ActionSendPrivateMsg, Params: SendPrivateMsgParams{UserID: id, Message: msg}}, nil
}

package mention

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"
)

// separator 位于提及段与正文之间。
const separator = "\n\n"

// Platform 是 Dispatcher 依赖的平台能力。
type Platform interface {
	// RemainingAtAll 返回机器人在该群本周期内剩余的 @全体成员 次数。
	RemainingAtAll(ctx context.Context, groupID string) (int, error)
	// SendGroupMessage 向群发送消息链。
	SendGroupMessage(ctx context.Context, groupID string, msg message.Chain) error
}

// Dispatcher 将一次 "/@" 调用转换为群消息并发送。
// 自身不持有跨调用的可变状态。
type Dispatcher struct {
	platform Platform
	parser   *Parser
	logger   *zap.Logger
}

// Option 自定义 Dispatcher。
type Option func(*Dispatcher)

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithParser 替换命令解析器（例如使用自定义标记）。
func WithParser(p *Parser) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.parser = p
		}
	}
}

// NewDispatcher 绑定平台能力创建 Dispatcher。
func NewDispatcher(platform Platform, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		platform: platform,
		parser:   defaultParser,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle 处理一次命令调用。
//
// 流程：
//
//	[定位命令文本段] -> [解析] --失败--> MalformedCommandError
//	      |
//	[确定目标群] --失败--> NoGroupContextError
//	      |
//	[目标为 all?] --是--> [查询剩余次数] --<=0--> QuotaExhaustedError
//	      |
//	[构建消息链] -> [send_group_msg] -> [记录日志]
//
// 返回的 UserError 应以纯文本回复调用者；其余错误来自平台调用，原样向上传递。
func (d *Dispatcher) Handle(ctx context.Context, update botcore.Update) error {
	line, attachments := SplitCommand(update, d.parser.Marker())

	cmd, ok := d.parser.Parse(line)
	if !ok {
		return &MalformedCommandError{Marker: d.parser.Marker()}
	}

	groupID, err := ResolveGroup(cmd, update)
	if err != nil {
		return err
	}

	if cmd.Target.All {
		remain, err := d.platform.RemainingAtAll(ctx, groupID)
		if err != nil {
			return fmt.Errorf("query at-all remain for group %s: %w", groupID, err)
		}
		d.logger.Info("at-all remain",
			zap.String("group_id", groupID),
			zap.Int("remain", remain),
		)
		if remain <= 0 {
			return &QuotaExhaustedError{GroupID: groupID}
		}
	}

	payload := BuildPayload(cmd, attachments)
	if err := d.platform.SendGroupMessage(ctx, groupID, payload); err != nil {
		return fmt.Errorf("send group message to %s: %w", groupID, err)
	}

	d.logger.Info("已发送消息到群聊",
		zap.String("group_id", groupID),
		zap.String("sender", update.SenderID),
		zap.Bool("at_all", mentionsAll(payload)),
		zap.Stringer("message", payload),
	)
	return nil
}

// ResolveGroup 确定目标群：优先使用显式群号，其次是当前群聊，否则返回 NoGroupContextError。
func ResolveGroup(cmd ParsedCommand, update botcore.Update) (string, error) {
	if cmd.HasGroup() {
		return cmd.GroupID, nil
	}
	if update.IsGroup() && update.ChatID != "" {
		return update.ChatID, nil
	}
	return "", &NoGroupContextError{}
}

// BuildPayload 构建出站消息链：提及段、分隔换行、正文、原消息中的其余段。
func BuildPayload(cmd ParsedCommand, attachments message.Chain) message.Chain {
	payload := make(message.Chain, 0, len(cmd.Target.IDs)+len(attachments)+3)
	if cmd.Target.All {
		payload = append(payload, message.MentionAll())
	} else {
		for _, id := range cmd.Target.IDs {
			payload = append(payload, message.At{QQ: id})
		}
	}
	payload = append(payload, message.Text{Text: separator})
	if cmd.Content != "" {
		payload = append(payload, message.Text{Text: cmd.Content})
	}
	return append(payload, attachments...)
}

// SplitCommand 在消息链中找到以 marker 开头的文本段，返回该段文本与其后的全部段。
// 找不到时退回到 update.Text 且没有附加段。
func SplitCommand(update botcore.Update, marker string) (string, message.Chain) {
	for i, seg := range update.Message {
		text, ok := seg.(message.Text)
		if !ok {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(text.Text, " \t\r\n"), marker) {
			return text.Text, update.Message[i+1:]
		}
	}
	return update.Text, nil
}

// mentionsAll 判断消息链中是否包含 @全体成员。
func mentionsAll(chain message.Chain) bool {
	for _, seg := range chain {
		if at, ok := seg.(message.At); ok && at.IsAll() {
			return true
		}
	}
	return false
}

package onebot

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
)

// maxEventBody 限制 HTTP 上报体大小。
const maxEventBody = 1 << 20

// Bot 将 OneBot 事件接入业务流水线，并把流水线输出回复到原会话。
// Fields:
//   - Caller: 执行回复动作
//   - Pipeline: 业务流水线，可为空（此时仅丢弃事件）
//   - Adapter: 事件标准化
//   - Emitter: 回复编码
type Bot struct {
	Caller   Caller
	Pipeline botcore.PipelineInvoker
	Adapter  botcore.Adapter
	Emitter  botcore.Emitter

	secret string
	logger *zap.Logger
}

// BotOption 用于定制 Bot 行为。
type BotOption func(*Bot)

// WithAdapter 自定义事件标准化适配器。
func WithAdapter(adapter botcore.Adapter) BotOption {
	return func(b *Bot) {
		b.Adapter = adapter
	}
}

// WithEmitter 覆盖默认的回复构造器。
func WithEmitter(emitter botcore.Emitter) BotOption {
	return func(b *Bot) {
		b.Emitter = emitter
	}
}

// WithSecret 设置 HTTP 上报签名密钥。
func WithSecret(secret string) BotOption {
	return func(b *Bot) {
		b.secret = secret
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) BotOption {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBot 创建 Bot。caller 不能为空。
func NewBot(caller Caller, pipeline botcore.PipelineInvoker, opts ...BotOption) (*Bot, error) {
	if caller == nil {
		return nil, errors.New("caller is required")
	}
	bot := &Bot{
		Caller:   caller,
		Pipeline: pipeline,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(bot)
		}
	}
	if bot.Adapter == nil {
		bot.Adapter = MessageAdapter{}
	}
	if bot.Emitter == nil {
		bot.Emitter = ReplyEmitter{}
	}
	return bot, nil
}

// HandleEvent 处理一条事件，满足 EventHandler。
//
// 流程：
//
//	[非消息事件?] --是--> [忽略]
//	     |
//	[标准化] -> [触发流水线] -> [汇总文本片段]
//	     |
//	[收到 NoResponse?] --是--> [不回复]
//	     |
//	[文本非空] -> [编码回复动作] -> [调用平台]
func (b *Bot) HandleEvent(ctx context.Context, ev *Event) {
	if ev == nil || ev.PostType != PostTypeMessage || b.Pipeline == nil {
		return
	}
	update, err := b.Adapter.Normalize(ev)
	if err != nil {
		b.logger.Debug("skip event", zap.Error(err))
		return
	}

	streamID := uuid.NewString()
	out := b.Pipeline.Trigger(ctx, update, streamID)
	if out == nil {
		return
	}

	var (
		reply  strings.Builder
		silent bool
	)
	// 必须排干通道，生产方在通道关闭前可能仍在写入。
	for chunk := range out {
		switch {
		case chunk.Payload == botcore.NoResponse:
			silent = true
		case chunk.Payload != nil:
			b.emit(ctx, update, streamID, chunk)
		default:
			reply.WriteString(chunk.Content)
		}
	}
	if silent {
		return
	}

	text := strings.TrimSpace(reply.String())
	if text == "" {
		return
	}
	b.emit(ctx, update, streamID, botcore.StreamChunk{Content: text, IsFinal: true})
}

func (b *Bot) emit(ctx context.Context, update botcore.Update, streamID string, chunk botcore.StreamChunk) {
	payload, err := b.Emitter.Encode(update, streamID, chunk)
	if err != nil {
		b.logger.Error("encode reply", zap.String("chat_id", update.ChatID), zap.Error(err))
		return
	}
	act, ok := payload.(Action)
	if !ok {
		b.logger.Error("unexpected reply payload", zap.String("chat_id", update.ChatID))
		return
	}
	if _, err := b.Caller.Call(ctx, act.Name, act.Params); err != nil {
		b.logger.Error("send reply",
			zap.String("action", act.Name),
			zap.String("chat_id", update.ChatID),
			zap.Error(err),
		)
	}
}

// ServeHTTP 接收 OneBot HTTP 上报。
// 配置了 secret 时校验 X-Signature；校验通过后立即返回 204，事件在后台处理。
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if b.secret != "" && !verifySignature(b.secret, r.Header.Get("X-Signature"), body) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ev, err := ParseEvent(body)
	if err != nil {
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	go b.HandleEvent(context.WithoutCancel(r.Context()), ev)
}

// Signature 计算 HTTP 上报签名："sha1=" + hex(HMAC-SHA1(secret, body))。
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret, header string, body []byte) bool {
	return hmac.Equal([]byte(Signature(secret, body)), []byte(header))
}

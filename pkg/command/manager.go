package command

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
)

const commandLogSnippet = 256

// Manager 实现 PipelineInvoker，负责串联解析、构建 Cobra 命令树并执行。
type Manager struct {
	factory CommandFactory
	parser  Parser
	logger  *zap.Logger
}

// ManagerOption 自定义 Manager 行为。
type ManagerOption func(*Manager)

// WithLogger 注入自定义日志记录器。
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithParser 覆盖默认的命令解析器（例如更换前缀）。
func WithParser(p Parser) ManagerOption {
	return func(m *Manager) {
		m.parser = p
	}
}

// NewManager 绑定命令工厂，返回实现 PipelineInvoker 的管理器。
func NewManager(factory CommandFactory, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		factory: factory,
		parser:  NewParser(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Trigger 满足 botcore.PipelineInvoker，为每个事件构建独立的命令树并执行。
func (m *Manager) Trigger(ctx context.Context, update botcore.Update, streamID string) <-chan botcore.StreamChunk {
	out := make(chan botcore.StreamChunk, 1)
	go func() {
		defer close(out)

		if m == nil || m.factory == nil {
			out <- botcore.StreamChunk{Content: "Error: Command Manager not initialized", IsFinal: true}
			return
		}

		// 1. 初步解析
		parsed := m.parser.Parse(update.Text)
		if !parsed.IsCommand {
			// 非命令文本不回复，避免打扰会话。
			m.logger.Debug("skip non-command text",
				zap.String("text", truncateForLog(update.Text, commandLogSnippet)),
				zap.Error(ErrCommandRequired),
			)
			out <- botcore.StreamChunk{Payload: botcore.NoResponse, IsFinal: true}
			return
		}

		// 2. 创建 Cobra 命令树
		rootCmd := m.factory()

		// 3. 配置 IO 重定向
		writer := NewStreamWriter(out)
		rootCmd.SetOut(writer)
		rootCmd.SetErr(writer)
		rootCmd.CompletionOptions.DisableDefaultCmd = true

		// 4. 准备上下文
		// 使用 sync.Once 确保 Final 信号只发送一次（无论是显式信号还是执行结束兜底）
		var signalOnce sync.Once
		sendSignal := func(chunk botcore.StreamChunk) {
			signalOnce.Do(func() {
				out <- chunk
			})
		}

		execCtx := &ExecutionContext{
			Update:     update,
			StreamID:   streamID,
			Parsed:     parsed,
			sendSignal: sendSignal,
		}
		if ctx == nil {
			ctx = context.Background()
		}
		runCtx := WithExecutionContext(ctx, execCtx)

		// 5. 设置参数并执行
		args := parsed.Tokens
		// 如果第一个 token 匹配 root command 的 name，移除它以避免 "unknown command X for X" 错误
		if len(args) > 0 && strings.EqualFold(args[0], rootCmd.Name()) {
			args = args[1:]
		}
		if _, _, err := rootCmd.Find(args); err != nil {
			err = fmt.Errorf("%w: %s", ErrCommandNotFound, parsed.Tokens[0])
			m.logger.Info("unknown command",
				zap.String("conversation", execCtx.ConversationKey()),
				zap.Error(err),
			)
			out <- botcore.StreamChunk{Content: fmt.Sprintf("❌ 执行出错: %v\n", err)}
			signalOnce.Do(func() {
				out <- botcore.StreamChunk{Content: "", IsFinal: true}
			})
			return
		}
		rootCmd.SetArgs(args)
		m.logger.Info("executing command",
			zap.String("conversation", execCtx.ConversationKey()),
			zap.String("text", truncateForLog(update.Text, commandLogSnippet)),
		)

		if err := rootCmd.ExecuteContext(runCtx); err != nil {
			m.logger.Warn("command execution error",
				zap.String("conversation", execCtx.ConversationKey()),
				zap.Error(err),
			)
			out <- botcore.StreamChunk{Content: fmt.Sprintf("❌ 执行出错: %v\n", err)}
		}

		// 执行结束后若没有发送过显式信号，这里发送一个默认的结束包。
		signalOnce.Do(func() {
			out <- botcore.StreamChunk{Content: "", IsFinal: true}
		})
	}()
	return out
}

// truncateForLog 限制日志中输出的文本长度。
func truncateForLog(src string, limit int) string {
	if limit <= 0 || len(src) <= limit {
		return src
	}
	return fmt.Sprintf("%s...(truncated)", src[:limit])
}

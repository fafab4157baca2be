package mention

import (
	"github.com/spf13/cobra"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/command"
)

// RootName 是命令树根节点名称。
const RootName = "atbot"

// NewCommand 创建 "@" 子命令。
// 正文需要保留原始空白与换行，所以关闭 Flag 解析，直接交给 Dispatcher 读取完整消息链。
func NewCommand(name string, d *Dispatcher) *cobra.Command {
	return &cobra.Command{
		Use:                name + " [群ID] <all|id1,id2,...> [内容]",
		Short:              "在指定群内@给定名单的用户并发送通知内容",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			execCtx := command.FromContext(cmd.Context())
			if execCtx == nil {
				return command.ErrNoExecutionContext
			}

			err := d.Handle(cmd.Context(), execCtx.Update)
			if msg, ok := UserMessage(err); ok {
				cmd.Println(msg)
				return nil
			}
			if err != nil {
				return err
			}

			// 发送成功时不回复调用者。
			execCtx.SetNoResponse()
			return nil
		},
	}
}

// NewCommandFactory 返回供 command.Manager 使用的命令树工厂。
func NewCommandFactory(name string, d *Dispatcher) command.CommandFactory {
	return func() *cobra.Command {
		root := &cobra.Command{
			Use:           RootName,
			SilenceUsage:  true,
			SilenceErrors: true,
		}
		root.AddCommand(NewCommand(name, d))
		return root
	}
}

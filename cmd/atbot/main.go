package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/command"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/config"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/logging"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/mention"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/platform/onebot"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "atbot",
		Short:         "OneBot 群聊 @ 转发机器人",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本号",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "连接 OneBot 并处理命令",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径，为空时使用默认配置")
	cmd.Flags().StringVar(&envFile, "env-file", "", ".env 文件路径")
	return cmd
}

// serve 组装流水线并按配置的传输方式运行，直到 ctx 结束。
//
// 组装顺序：
//
//	Caller(ws/http) -> API -> Dispatcher -> command.Manager -> botcore.Chain -> onebot.Bot
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var (
		caller    onebot.Caller
		connector *onebot.WSConnector
	)
	switch cfg.OneBot.Transport {
	case config.TransportWS:
		connector = onebot.NewWSConnector(cfg.OneBot.WSURL, cfg.OneBot.AccessToken, cfg.OneBot.Reconnect(), logger)
		caller = connector
	case config.TransportHTTP:
		client, err := onebot.NewHTTPClient(cfg.OneBot.HTTPURL, cfg.OneBot.AccessToken, cfg.OneBot.Timeout())
		if err != nil {
			return err
		}
		caller = client
	}

	dispatcher := mention.NewDispatcher(
		onebot.NewAPI(caller),
		mention.WithLogger(logger),
		mention.WithParser(mention.NewParser(cfg.Command.Marker)),
	)
	manager := command.NewManager(
		mention.NewCommandFactory(cfg.Command.CommandName(), dispatcher),
		command.WithLogger(logger),
		command.WithParser(command.Parser{Prefix: cfg.Command.CommandPrefix()}),
	)

	if len(cfg.Command.Admins) == 0 {
		logger.Warn("command.admins 为空，任何人都可以触发命令")
	}
	chain := botcore.NewChain(nil)
	chain.AddRoute("mention", botcore.MatchAll(
		botcore.MatchPlatform(onebot.Platform),
		botcore.MatchCommand(cfg.Command.Marker),
		botcore.MatchSender(cfg.Command.Admins...),
	), manager)

	bot, err := onebot.NewBot(caller, chain,
		onebot.WithSecret(cfg.OneBot.Secret),
		onebot.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if connector != nil {
		logger.Info("starting onebot ws transport", zap.String("url", cfg.OneBot.WSURL))
		return connector.Run(ctx, bot.HandleEvent)
	}
	return serveHTTP(ctx, cfg, bot, logger)
}

func serveHTTP(ctx context.Context, cfg *config.Config, bot *onebot.Bot, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.OneBot.CallbackPath, bot)

	srv := &http.Server{
		Addr:              cfg.OneBot.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting onebot http callback",
			zap.String("addr", cfg.OneBot.ListenAddr),
			zap.String("path", cfg.OneBot.CallbackPath),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

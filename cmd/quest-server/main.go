package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/ChoreQuest/internal/bootstrap"
	"github.com/yuqie6/ChoreQuest/internal/httpapi"
	"github.com/yuqie6/ChoreQuest/internal/pkg/buildinfo"
	"github.com/yuqie6/ChoreQuest/internal/pkg/config"
	questotel "github.com/yuqie6/ChoreQuest/internal/pkg/otel"
)

func main() {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "quest-server",
		Short:        "ChoreQuest 游戏经济服务",
		Version:      buildinfo.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfgFile)
		},
	}
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认可执行文件旁 config/config.yaml）")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	if cfgPath == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			cfgPath = p
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				_ = config.WriteFile(cfgPath, config.Default())
			}
		}
	}

	core, err := bootstrap.NewCore(cfgPath)
	if err != nil {
		slog.Error("启动失败", "error", err)
		return err
	}
	defer core.Close()

	slog.Info("ChoreQuest 启动中...", "name", core.Cfg.App.Name, "version", buildinfo.String())

	shutdownTracing, err := questotel.Setup(ctx, questotel.Options{
		Enabled:     core.Cfg.Telemetry.TracingEnabled,
		Endpoint:    core.Cfg.Telemetry.OTLPEndpoint,
		ServiceName: core.Cfg.App.Name,
		Version:     buildinfo.Version,
	})
	if err != nil {
		slog.Warn("初始化追踪失败，继续运行", "error", err)
	}

	if err := config.Watch(cfgPath, func(next *config.Config) {
		slog.Info("配置已变更；游戏规则与监听地址需重启后生效")
	}); err != nil {
		slog.Warn("配置热更新未启用", "error", err)
	}

	core.StartAutoSweep(ctx)

	server, err := httpapi.Start(ctx, core, httpapi.OptionsFromCore(core))
	if err != nil {
		slog.Error("启动 HTTP 失败", "error", err)
		return err
	}

	<-ctx.Done()
	slog.Info("正在关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	if shutdownTracing != nil {
		_ = shutdownTracing(shutdownCtx)
	}
	slog.Info("ChoreQuest 已退出")
	return nil
}

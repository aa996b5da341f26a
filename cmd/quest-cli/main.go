package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yuqie6/ChoreQuest/internal/bootstrap"
	"github.com/yuqie6/ChoreQuest/internal/pkg/buildinfo"
	"github.com/yuqie6/ChoreQuest/internal/pkg/retry"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

// skipCore 标记不需要数据库的子命令
const skipCore = "skip-core"

type cli struct {
	cfgFile string
	core    *bootstrap.Core
}

func main() {
	rootCmd, c := newRootCmd()
	err := rootCmd.Execute()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

func (c *cli) close() {
	if c.core != nil {
		_ = c.core.Close()
		c.core = nil
	}
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "quest",
		Short:         "ChoreQuest - 家务任务游戏化经济引擎",
		Long:          `ChoreQuest 管理体力、连胜、积分与等级，本命令行直接操作本地数据库，适合运维与调试。`,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipCore] == "true" {
				return nil
			}
			core, err := bootstrap.NewCore(c.cfgFile)
			if err != nil {
				return fmt.Errorf("初始化失败: %w", err)
			}
			c.core = core
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(c.claimCmd())
	rootCmd.AddCommand(c.completeCmd())
	rootCmd.AddCommand(c.statsCmd())
	rootCmd.AddCommand(c.sweepCmd())
	rootCmd.AddCommand(c.leaderboardCmd())
	rootCmd.AddCommand(c.adjustCmd())
	rootCmd.AddCommand(c.verifyCmd())
	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd, c
}

// retryOptions 与 HTTP 层一致：仅存储冲突重试
func (c *cli) retryOptions() retry.RetryOptions {
	opts := retry.DefaultOptions()
	if c.core != nil && c.core.Cfg.Server.RetryAttempts > 0 {
		opts.MaxAttempts = c.core.Cfg.Server.RetryAttempts
	}
	opts.Classifier = service.IsRetryable
	return opts
}

// versionCmd 版本信息
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "显示版本",
		Annotations: map[string]string{skipCore: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

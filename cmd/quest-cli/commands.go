package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/yuqie6/ChoreQuest/internal/pkg/config"
	"github.com/yuqie6/ChoreQuest/internal/pkg/retry"
	"github.com/yuqie6/ChoreQuest/internal/schema"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

const divider = "═══════════════════════════════════════"

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// claimCmd 领取任务（扣体力）
func (c *cli) claimCmd() *cobra.Command {
	var userID, taskID, category string

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "领取任务并扣减体力",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var res service.ConsumeResult
			err := retry.Do(ctx, func() error {
				var err error
				res, err = c.core.Engine.Claim(ctx, userID, taskID, service.Category(category))
				return err
			}, c.retryOptions())
			if err != nil {
				return err
			}

			if !res.Success {
				fmt.Fprintf(out, "⚠️  体力不足：需要 %d，当前 %d/%d\n", res.Cost, res.Remaining, res.Max)
				return nil
			}
			fmt.Fprintf(out, "✅ 已领取 %s（消耗 %d 体力，剩余 %d/%d）\n", taskID, res.Cost, res.Remaining, res.Max)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&taskID, "task", "t", "", "任务 ID")
	cmd.Flags().StringVar(&category, "category", string(service.CategoryStandard), "任务类别 quick|standard|epic|legendary")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

// completeCmd 完成任务并结算
func (c *cli) completeCmd() *cobra.Command {
	var userID, taskID, category, skillTree string
	var firstDaily, speed, asJSON bool
	var claimedAt int64

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "完成任务：结算连胜、积分与经验",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if taskID == "" {
				taskID = uuid.NewString()
			}

			var res service.CompleteResult
			err := retry.Do(ctx, func() error {
				var err error
				res, err = c.core.Engine.Complete(ctx, service.CompleteRequest{
					UserID:       userID,
					TaskID:       taskID,
					Category:     service.Category(category),
					IsFirstDaily: firstDaily,
					IsSpeedBonus: speed,
					SkillTree:    skillTree,
					ClaimedAt:    claimedAt,
				})
				return err
			}, c.retryOptions())
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(out, res)
			}

			if res.Replayed {
				fmt.Fprintf(out, "ℹ️  任务 %s 已结算过，以下为首次结算结果\n", res.TaskID)
			}
			p := res.Points
			fmt.Fprintf(out, "🎉 任务 %s 完成\n", res.TaskID)
			fmt.Fprintln(out, divider)
			fmt.Fprintf(out, "  • 基础积分: %d\n", p.Base)
			if p.FirstDailyBonus > 0 {
				fmt.Fprintf(out, "  • 每日首单: +%d\n", p.FirstDailyBonus)
			}
			if p.SpeedBonus > 0 {
				fmt.Fprintf(out, "  • 速度加成: +%d\n", p.SpeedBonus)
			}
			if p.StreakBonus > 0 {
				fmt.Fprintf(out, "  • 连胜加成: +%d (×%.2f)\n", p.StreakBonus, p.Multiplier)
			}
			fmt.Fprintf(out, "  • 合计: %d\n", p.Total)
			fmt.Fprintf(out, "🔥 连胜: %d 天\n", res.Streak)
			fmt.Fprintf(out, "⭐ 经验: +%d（累计 %d）\n", res.XP.XPAwarded, res.XP.TotalXP)
			if res.XP.LeveledUp {
				fmt.Fprintf(out, "🆙 升级！Lv.%d → Lv.%d\n", res.XP.PreviousLevel, res.XP.NewLevel)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&taskID, "task", "t", "", "任务 ID（为空时自动生成）")
	cmd.Flags().StringVar(&category, "category", string(service.CategoryStandard), "任务类别 quick|standard|epic|legendary")
	cmd.Flags().StringVar(&skillTree, "skill", "", "技能树（可选）")
	cmd.Flags().BoolVar(&firstDaily, "first-daily", false, "调用方认为是今日首单")
	cmd.Flags().BoolVar(&speed, "speed", false, "速度加成")
	cmd.Flags().Int64Var(&claimedAt, "claimed-at", 0, "领取时间 (Unix ms)，用于自动判定速度加成")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// statsCmd 查看用户数据
func (c *cli) statsCmd() *cobra.Command {
	var userID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "查看用户体力、等级、连胜与积分",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			stats, err := c.core.Engine.GetUserStats(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, stats)
			}

			fmt.Fprintf(out, "👤 %s\n", stats.UserID)
			fmt.Fprintln(out, divider)
			fmt.Fprintf(out, "⚡ 体力: %d/%d", stats.Stamina.Current, stats.Stamina.Max)
			if stats.Stamina.SecondsUntilNextRegen > 0 {
				fmt.Fprintf(out, "（%d 秒后恢复 1 点）", stats.Stamina.SecondsUntilNextRegen)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "⭐ 等级: Lv.%d（%d XP，%.1f%%）\n", stats.Level.CurrentLevel, stats.Level.CurrentXP, stats.Level.ProgressPercentage)
			fmt.Fprintf(out, "🔥 连胜: %d 天（最长 %d 天）\n", stats.CurrentStreak, stats.LongestStreak)
			fmt.Fprintf(out, "💰 积分: %d（今日 %d）\n", stats.TotalPoints, stats.PointsToday)
			fmt.Fprintf(out, "✅ 完成任务: %d\n", stats.TotalTasksCompleted)

			trees := make([]string, 0, len(stats.Skills))
			for tree := range stats.Skills {
				trees = append(trees, tree)
			}
			sort.Strings(trees)
			fmt.Fprintf(out, "\n🎯 技能树\n")
			for _, tree := range trees {
				s := stats.Skills[tree]
				fmt.Fprintf(out, "  • %-12s Lv.%d  %d XP  %.1f%%\n", tree, s.Level, s.XP, s.ProgressPercentage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "用户 ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// sweepCmd 手动执行连胜清扫
func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "清零断签用户的连胜（通常由服务端每日自动执行）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var n int64
			err := retry.Do(ctx, func() error {
				var err error
				n, err = c.core.Engine.RunDailyStreakSweep(ctx)
				return err
			}, c.retryOptions())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🧹 已重置 %d 个用户的连胜，下次清扫: %s\n",
				n, c.core.Engine.NextSweepAt().Format("2006-01-02 15:04"))
			return nil
		},
	}
}

// leaderboardCmd 积分排行
func (c *cli) leaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "积分排行榜",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			entries, err := c.core.Engine.Leaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "📚 还没有任何用户数据")
				return nil
			}

			fmt.Fprintln(out, "🏆 积分排行")
			fmt.Fprintln(out, divider)
			for _, e := range entries {
				fmt.Fprintf(out, "  %2d. %-16s %6d 分  Lv.%-3d 🔥%d\n", e.Rank, e.UserID, e.TotalPoints, e.Level, e.CurrentStreak)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "显示条数（最多 100）")

	return cmd
}

// adjustCmd 人工调整积分
func (c *cli) adjustCmd() *cobra.Command {
	var userID, txType, reason string
	var amount int64

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "人工调整积分（奖励/退款/管理员调整）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var tx *schema.PointTransaction
			err := retry.Do(ctx, func() error {
				var err error
				tx, err = c.core.Engine.Points().AdjustPoints(ctx, service.AdjustRequest{
					UserID: userID,
					Amount: amount,
					Type:   schema.PointTransactionType(txType),
					Reason: reason,
				})
				return err
			}, c.retryOptions())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 已记录流水 %s：%+d（%s）\n", tx.TxID, tx.Amount, tx.Type)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "用户 ID")
	cmd.Flags().Int64Var(&amount, "amount", 0, "调整额，可为负")
	cmd.Flags().StringVar(&txType, "type", string(schema.PointTxAdminAdjustment), "bonus|refund|admin_adjustment")
	cmd.Flags().StringVar(&reason, "reason", "", "原因")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

// verifyCmd 核对积分流水
func (c *cli) verifyCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "核对积分流水之和与总积分",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.core.Engine.Points().VerifyLedger(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !report.Consistent {
				fmt.Fprintf(out, "❌ 不一致：总积分 %d，流水合计 %d\n", report.TotalPoints, report.LedgerSum)
				return errors.New("积分流水不一致")
			}
			fmt.Fprintf(out, "✅ 一致：总积分 %d\n", report.TotalPoints)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "用户 ID")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// initConfigCmd 写出默认配置
func initConfigCmd() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:         "init-config",
		Short:       "生成默认配置文件",
		Annotations: map[string]string{skipCore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("配置文件已存在: %s（使用 --force 覆盖）", path)
			}
			if err := config.WriteFile(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 已写入 %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "output", "o", "", "输出路径（默认可执行文件旁 config/config.yaml）")
	cmd.Flags().BoolVar(&force, "force", false, "覆盖已有文件")

	return cmd
}

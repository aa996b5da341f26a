package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/schema"
)

// MilestoneInfo 连胜里程碑
type MilestoneInfo struct {
	CurrentStreak    int     `json:"current_streak"`
	CurrentMilestone int     `json:"current_milestone"` // 0 = 尚未达到
	NextMilestone    int     `json:"next_milestone"`    // 0 = 已是最高
	DaysToNext       int     `json:"days_to_next"`
	BonusRate        float64 `json:"bonus_rate"`
	Multiplier       float64 `json:"multiplier"`
}

// streakAdvance 一次完成对连胜的影响
type streakAdvance struct {
	Previous   int
	Streak     int
	FirstToday bool
}

// StreakService 连胜：按自然日的连续性状态机
type StreakService struct {
	store Store
	rules *Rules
	now   Clock
}

// NewStreakService 创建连胜服务
func NewStreakService(store Store, rules *Rules, now Clock) *StreakService {
	if now == nil {
		now = time.Now
	}
	return &StreakService{store: store, rules: rules, now: now}
}

// advance 只在当日首次完成时推进连胜。
// 调用时本次完成记录尚未写入，"今日已有完成"即说明不是首次。
func (s *StreakService) advance(ctx context.Context, r Repos, stats *schema.UserGameStats, now time.Time) (streakAdvance, error) {
	dayStart := s.rules.StartOfDay(now)
	prevDay := dayStart.AddDate(0, 0, -1)
	nextDay := dayStart.AddDate(0, 0, 1)
	adv := streakAdvance{Previous: stats.CurrentStreak, Streak: stats.CurrentStreak}

	today, err := r.Completions.CountInRange(ctx, stats.UserID, dayStart.UnixMilli(), nextDay.UnixMilli())
	if err != nil {
		return adv, err
	}
	adv.FirstToday = today == 0 && stats.LastActiveAt < dayStart.UnixMilli()

	if adv.FirstToday {
		yesterday, err := r.Completions.CountInRange(ctx, stats.UserID, prevDay.UnixMilli(), dayStart.UnixMilli())
		if err != nil {
			return adv, err
		}
		activeYesterday := yesterday > 0 ||
			(stats.LastActiveAt >= prevDay.UnixMilli() && stats.LastActiveAt < dayStart.UnixMilli())
		if activeYesterday {
			stats.ApplyStreak(stats.CurrentStreak + 1)
		} else {
			stats.ApplyStreak(1)
		}
		adv.Streak = stats.CurrentStreak
	}

	if ms := now.UnixMilli(); ms > stats.LastActiveAt {
		stats.LastActiveAt = ms
	}
	return adv, nil
}

// UpdateStreak 记录一次活跃并返回当前连胜
func (s *StreakService) UpdateStreak(ctx context.Context, userID string) (int, error) {
	now := s.now()
	var streak int
	err := s.store.WithinTx(ctx, func(r Repos) error {
		stats, err := loadStatsForUpdate(ctx, r, s.rules, userID, now)
		if err != nil {
			return err
		}
		adv, err := s.advance(ctx, r, stats, now)
		if err != nil {
			return err
		}
		if err := r.Stats.Save(ctx, stats); err != nil {
			return err
		}
		streak = adv.Streak
		return nil
	})
	return streak, err
}

// sweepSince 清扫窗口起点：今日零点往前 SweepGraceDays 天
func (s *StreakService) sweepSince(now time.Time) time.Time {
	return s.rules.StartOfDay(now).AddDate(0, 0, -s.rules.Streak.SweepGraceDays)
}

// SweepInactiveStreaks 将窗口内没有任何完成的用户连胜清零，返回清零人数
func (s *StreakService) SweepInactiveStreaks(ctx context.Context) (int64, error) {
	since := s.sweepSince(s.now())
	n, err := s.store.Repos().Stats.ResetInactiveStreaks(ctx, since.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("清扫连胜失败: %w", err)
	}
	slog.Info("连胜清扫完成", "since", since.Format(time.RFC3339), "reset", n)
	return n, nil
}

// NextSweepAt 下一次清扫时间：规则时区下严格晚于 now 的 reset_hour 整点
func (s *StreakService) NextSweepAt(now time.Time) time.Time {
	lt := now.In(s.rules.Location)
	at := time.Date(lt.Year(), lt.Month(), lt.Day(), s.rules.Streak.ResetHour, 0, 0, 0, s.rules.Location)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// MilestoneInfo 当前/下一个里程碑与加成
func (s *StreakService) MilestoneInfo(streak int) MilestoneInfo {
	if streak < 0 {
		streak = 0
	}
	info := MilestoneInfo{CurrentStreak: streak}
	for _, m := range s.rules.Streak.Milestones {
		if m <= streak {
			info.CurrentMilestone = m
			continue
		}
		info.NextMilestone = m
		info.DaysToNext = m - streak
		break
	}
	info.BonusRate = s.rules.StreakBonusRate(streak)
	info.Multiplier = 1 + info.BonusRate
	return info
}

// IsMilestone streak 是否恰好落在里程碑上
func (s *StreakService) IsMilestone(streak int) bool {
	return slices.Contains(s.rules.Streak.Milestones, streak)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/eventbus"
	"github.com/yuqie6/ChoreQuest/internal/pkg/metrics"
	"github.com/yuqie6/ChoreQuest/internal/repository"
	"github.com/yuqie6/ChoreQuest/internal/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

var tracer = otel.Tracer("github.com/yuqie6/ChoreQuest/internal/service")

// CompleteRequest 完成任务的输入
type CompleteRequest struct {
	UserID       string
	TaskID       string
	Category     Category
	IsFirstDaily bool
	IsSpeedBonus bool
	SkillTree    string
	// ClaimedAt 领取时间 (Unix ms)，非 0 时按速度窗口自动判定速度加成
	ClaimedAt int64
}

// CompleteResult 完成任务的结算结果
type CompleteResult struct {
	TaskID      string          `json:"task_id"`
	Points      PointsBreakdown `json:"points"`
	Streak      int             `json:"streak"`
	XP          XPResult        `json:"xp"`
	CompletedAt int64           `json:"completed_at"`
	// Replayed 为 true 表示该任务此前已结算，本次直接回放快照
	Replayed bool `json:"replayed"`
}

// UserStats 用户游戏数据的只读聚合
type UserStats struct {
	UserID              string                 `json:"user_id"`
	Stamina             StaminaStatus          `json:"stamina"`
	Level               LevelInfo              `json:"level"`
	Skills              map[string]SkillStatus `json:"skills"`
	PointsToday         int64                  `json:"points_today"`
	TotalPoints         int64                  `json:"total_points"`
	CurrentStreak       int                    `json:"current_streak"`
	LongestStreak       int                    `json:"longest_streak"`
	TotalTasksCompleted int64                  `json:"total_tasks_completed"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	TotalPoints   int64  `json:"total_points"`
	Level         int    `json:"level"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// EngineOption 引擎可选项
type EngineOption func(*GameEngine)

// WithClock 替换时间源（测试用）
func WithClock(now Clock) EngineOption {
	return func(e *GameEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLevelPolicy 替换全局等级曲线
func WithLevelPolicy(p LevelPolicy) EngineOption {
	return func(e *GameEngine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithEventHub 结算后发布领域事件
func WithEventHub(hub *eventbus.Hub) EngineOption {
	return func(e *GameEngine) {
		e.hub = hub
	}
}

// GameEngine 对外门面：claim / complete 两个入口事件 + 只读聚合
type GameEngine struct {
	store  Store
	rules  *Rules
	policy LevelPolicy
	hub    *eventbus.Hub
	now    Clock

	stamina     *StaminaService
	streaks     *StreakService
	points      *PointsService
	progression *ProgressionService
}

// NewGameEngine 创建引擎；rules 校验失败直接返回错误
func NewGameEngine(store Store, rules *Rules, opts ...EngineOption) (*GameEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	if rules == nil {
		rules = DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("规则校验失败: %w", err)
	}

	e := &GameEngine{store: store, rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = DefaultLevelPolicy{Step: rules.XP.LevelStep, Max: rules.XP.MaxLevel}
	}

	e.stamina = NewStaminaService(store, rules, e.now)
	e.streaks = NewStreakService(store, rules, e.now)
	e.points = NewPointsService(store, rules, e.now)
	e.progression = NewProgressionService(store, rules, e.policy, e.now)
	return e, nil
}

func (e *GameEngine) Rules() *Rules                    { return e.rules }
func (e *GameEngine) Stamina() *StaminaService         { return e.stamina }
func (e *GameEngine) Streaks() *StreakService          { return e.streaks }
func (e *GameEngine) Points() *PointsService           { return e.points }
func (e *GameEngine) Progression() *ProgressionService { return e.progression }

func startSpan(ctx context.Context, name, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("quest.user_id", userID))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsRetryable(err) {
			metrics.ConflictsTotal.WithLabelValues(op).Inc()
		}
	}
	span.End()
}

// Claim 领取任务：只扣减体力。体力不足时 Success=false，调用方不应转换任务状态。
func (e *GameEngine) Claim(ctx context.Context, userID, taskID string, cat Category) (res ConsumeResult, err error) {
	ctx, span := startSpan(ctx, "GameEngine.Claim", userID,
		attribute.String("quest.task_id", taskID),
		attribute.String("quest.category", string(cat)))
	defer func() { endSpan(span, "claim", err) }()

	res, err = e.stamina.ConsumeForTask(ctx, userID, cat)
	if err != nil {
		return res, err
	}

	evt := eventbus.Event{
		Type:   eventbus.TypeTaskClaimed,
		UserID: userID,
		Data: map[string]any{
			"task_id":   taskID,
			"category":  string(cat),
			"cost":      res.Cost,
			"remaining": res.Remaining,
		},
	}
	if res.Success {
		metrics.ClaimsTotal.WithLabelValues(string(cat), "accepted").Inc()
		metrics.StaminaSpentTotal.Add(float64(res.Cost))
	} else {
		evt.Type = eventbus.TypeTaskClaimRejected
		metrics.ClaimsTotal.WithLabelValues(string(cat), "rejected").Inc()
		slog.Debug("体力不足，拒绝领取", "user", userID, "task", taskID, "cost", res.Cost, "remaining", res.Remaining)
	}
	e.hub.Publish(evt)
	return res, nil
}

// IsSpeedCompletion 领取后在速度窗口内完成
func (e *GameEngine) IsSpeedCompletion(claimedAt, completedAt time.Time) bool {
	if claimedAt.IsZero() || completedAt.Before(claimedAt) {
		return false
	}
	return completedAt.Sub(claimedAt) <= e.rules.SpeedWindow
}

func (e *GameEngine) validateComplete(req CompleteRequest) error {
	if req.UserID == "" {
		return ErrInvalidUser
	}
	if req.TaskID == "" {
		return ErrInvalidTask
	}
	if _, err := e.rules.PointsFor(req.Category); err != nil {
		return err
	}
	if req.SkillTree != "" {
		return e.rules.CheckSkillTree(req.SkillTree)
	}
	return nil
}

func replayCompletion(c *schema.TaskCompletion) CompleteResult {
	res := CompleteResult{
		TaskID:      c.TaskID,
		Points:      breakdownFromMetadata(c.Breakdown.Data(), c.Points),
		Streak:      c.Streak,
		CompletedAt: c.Timestamp,
		Replayed:    true,
		XP: XPResult{
			XPAwarded: c.XPAwarded,
			TotalXP:   c.TotalXP,
			LeveledUp: c.LeveledUp,
			NewLevel:  c.NewLevel,
		},
	}
	if c.SkillTree != "" {
		res.XP.Skill = &SkillResult{Tree: c.SkillTree}
	}
	return res
}

// Complete 结算一次任务完成：连胜 → 积分（使用刚更新的连胜）→ 经验。
// 全部写入在同一事务内，失败时不留下任何部分修改；
// (user, task) 已结算过时回放首次结算的结果，重试不会重复发放。
func (e *GameEngine) Complete(ctx context.Context, req CompleteRequest) (res CompleteResult, err error) {
	ctx, span := startSpan(ctx, "GameEngine.Complete", req.UserID,
		attribute.String("quest.task_id", req.TaskID),
		attribute.String("quest.category", string(req.Category)))
	defer func() { endSpan(span, "complete", err) }()

	if err := e.validateComplete(req); err != nil {
		return CompleteResult{}, err
	}

	started := time.Now()
	now := e.now()
	flags := AwardFlags{IsSpeedBonus: req.IsSpeedBonus}
	if !flags.IsSpeedBonus && req.ClaimedAt > 0 {
		flags.IsSpeedBonus = e.IsSpeedCompletion(time.UnixMilli(req.ClaimedAt), now)
	}

	var adv streakAdvance
	err = e.store.WithinTx(ctx, func(r Repos) error {
		prev, err := r.Completions.Get(ctx, req.UserID, req.TaskID)
		if err != nil {
			return err
		}
		if prev != nil {
			res = replayCompletion(prev)
			return nil
		}

		stats, err := loadStatsForUpdate(ctx, r, e.rules, req.UserID, now)
		if err != nil {
			return err
		}

		adv, err = e.streaks.advance(ctx, r, stats, now)
		if err != nil {
			return err
		}
		// 首日加成以本事务内的判定为准，调用方标记只能收窄不能放宽
		flags.IsFirstDaily = req.IsFirstDaily && adv.FirstToday

		breakdown, err := e.points.award(ctx, r, stats, req.TaskID, req.Category, flags, now)
		if err != nil {
			return err
		}

		xp := e.progression.awardXP(stats, e.rules.XPForPoints(breakdown.Total))
		if req.SkillTree != "" {
			xp.Skill, err = e.progression.awardSkillXP(ctx, r, req.UserID, req.SkillTree, xp.XPAwarded, now)
			if err != nil {
				return err
			}
		}
		stats.TotalTasksCompleted++

		completion := &schema.TaskCompletion{
			UserID:    req.UserID,
			TaskID:    req.TaskID,
			Category:  string(req.Category),
			SkillTree: req.SkillTree,
			Points:    breakdown.Total,
			Streak:    stats.CurrentStreak,
			XPAwarded: xp.XPAwarded,
			TotalXP:   xp.TotalXP,
			LeveledUp: xp.LeveledUp,
			NewLevel:  xp.NewLevel,
			Breakdown: datatypes.NewJSONType(breakdown.metadata(req.TaskID)),
			Timestamp: now.UnixMilli(),
		}
		if err := r.Completions.Create(ctx, completion); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// 并发结算同一任务，让调用方重试以回放
				return fmt.Errorf("%w: %v", repository.ErrConflict, err)
			}
			return err
		}
		if err := r.Stats.Save(ctx, stats); err != nil {
			return err
		}

		res = CompleteResult{
			TaskID:      req.TaskID,
			Points:      breakdown,
			Streak:      stats.CurrentStreak,
			XP:          xp,
			CompletedAt: completion.Timestamp,
		}
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}

	if res.Replayed {
		metrics.CompletionReplaysTotal.Inc()
		slog.Debug("任务已结算，回放快照", "user", req.UserID, "task", req.TaskID)
		return res, nil
	}

	metrics.CompleteLatency.Observe(time.Since(started).Seconds())
	metrics.CompletionsTotal.WithLabelValues(string(req.Category)).Inc()
	metrics.PointsAwardedTotal.Add(float64(res.Points.Total))
	e.publishCompletion(req, res, adv)
	return res, nil
}

func (e *GameEngine) publishCompletion(req CompleteRequest, res CompleteResult, adv streakAdvance) {
	e.hub.Publish(eventbus.Event{
		Type:   eventbus.TypeTaskCompleted,
		UserID: req.UserID,
		Data: map[string]any{
			"task_id":  req.TaskID,
			"category": string(req.Category),
			"points":   res.Points.Total,
			"streak":   res.Streak,
			"total_xp": res.XP.TotalXP,
		},
	})
	if res.XP.LeveledUp {
		metrics.LevelUpsTotal.Inc()
		e.hub.Publish(eventbus.Event{
			Type:   eventbus.TypeLevelUp,
			UserID: req.UserID,
			Data:   map[string]any{"previous_level": res.XP.PreviousLevel, "new_level": res.XP.NewLevel},
		})
	}
	if adv.FirstToday && adv.Streak != adv.Previous && e.streaks.IsMilestone(adv.Streak) {
		info := e.streaks.MilestoneInfo(adv.Streak)
		e.hub.Publish(eventbus.Event{
			Type:   eventbus.TypeStreakMilestone,
			UserID: req.UserID,
			Data: map[string]any{
				"streak":         adv.Streak,
				"next_milestone": info.NextMilestone,
				"multiplier":     info.Multiplier,
			},
		})
	}
}

// GetUserStats 只读聚合；各部分相互独立，并发读取，且不会触发体力落库
func (e *GameEngine) GetUserStats(ctx context.Context, userID string) (out *UserStats, err error) {
	ctx, span := startSpan(ctx, "GameEngine.GetUserStats", userID)
	defer func() { endSpan(span, "stats", err) }()

	if userID == "" {
		return nil, ErrInvalidUser
	}
	now := e.now()
	r := e.store.Repos()
	out = &UserStats{UserID: userID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := readStats(gctx, r, e.rules, userID, now)
		if err != nil {
			return fmt.Errorf("读取用户数据失败: %w", err)
		}
		out.Stamina = e.stamina.Peek(stats, now)
		out.Level = levelInfo(e.policy, stats.TotalXP)
		out.TotalPoints = stats.TotalPoints
		out.CurrentStreak = stats.CurrentStreak
		out.LongestStreak = stats.LongestStreak
		out.TotalTasksCompleted = stats.TotalTasksCompleted
		return nil
	})
	g.Go(func() error {
		skills, err := e.progression.skillProgress(gctx, r, userID)
		if err != nil {
			return fmt.Errorf("读取技能进度失败: %w", err)
		}
		out.Skills = skills
		return nil
	})
	g.Go(func() error {
		today, err := e.points.pointsToday(gctx, r, userID, now)
		if err != nil {
			return fmt.Errorf("统计今日积分失败: %w", err)
		}
		out.PointsToday = today
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunDailyStreakSweep 由外部调度器每日调用一次
func (e *GameEngine) RunDailyStreakSweep(ctx context.Context) (n int64, err error) {
	ctx, span := startSpan(ctx, "GameEngine.RunDailyStreakSweep", "")
	defer func() { endSpan(span, "sweep", err) }()

	n, err = e.streaks.SweepInactiveStreaks(ctx)
	if err != nil {
		return 0, err
	}
	metrics.StreaksResetTotal.Add(float64(n))
	e.hub.Publish(eventbus.Event{
		Type: eventbus.TypeStreaksSwept,
		Data: map[string]any{"reset": n},
	})
	return n, nil
}

// NextSweepAt 下一次清扫时间
func (e *GameEngine) NextSweepAt() time.Time {
	return e.streaks.NextSweepAt(e.now())
}

// Leaderboard 积分排行
func (e *GameEngine) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := e.store.Repos().Stats.TopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for i, s := range rows {
		out = append(out, LeaderboardEntry{
			Rank:          i + 1,
			UserID:        s.UserID,
			TotalPoints:   s.TotalPoints,
			Level:         s.Level,
			CurrentStreak: s.CurrentStreak,
			LongestStreak: s.LongestStreak,
		})
	}
	return out, nil
}

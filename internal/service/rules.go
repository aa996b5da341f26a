package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/repository"
)

// Category 任务难度档位
type Category string

const (
	CategoryQuick     Category = "quick"
	CategoryStandard  Category = "standard"
	CategoryEpic      Category = "epic"
	CategoryLegendary Category = "legendary"
)

// Clock 可替换的时间源
type Clock func() time.Time

// StaminaTier 达到 Level 后体力上限提升到 Max
type StaminaTier struct {
	Level int
	Max   int
}

// StaminaRules 体力规则
type StaminaRules struct {
	Base         int
	RegenPerHour float64
	Tiers        []StaminaTier
}

// StreakRules 连胜规则
type StreakRules struct {
	ResetHour      int
	Milestones     []int
	BonusStep      float64
	MaxMultiplier  float64
	MinDays        int
	SweepGraceDays int
}

// SkillRules 技能树规则（平坦升级曲线）
type SkillRules struct {
	Trees      []string
	MaxLevel   int
	XPPerLevel int64
}

// XPRules 全局经验规则（递增升级曲线）
type XPRules struct {
	PerPoint  float64
	LevelStep int64
	MaxLevel  int
}

// Rules 游戏经济规则，部署时固定，运行期只读
type Rules struct {
	Points          map[Category]int64
	StaminaCosts    map[Category]int
	FirstDailyBonus int64
	SpeedBonus      int64
	SpeedWindow     time.Duration
	Stamina         StaminaRules
	Streak          StreakRules
	Skills          SkillRules
	XP              XPRules
	Location        *time.Location
}

// DefaultRules 默认规则
func DefaultRules() *Rules {
	return &Rules{
		Points: map[Category]int64{
			CategoryQuick:     10,
			CategoryStandard:  25,
			CategoryEpic:      50,
			CategoryLegendary: 100,
		},
		StaminaCosts: map[Category]int{
			CategoryQuick:     5,
			CategoryStandard:  10,
			CategoryEpic:      20,
			CategoryLegendary: 30,
		},
		FirstDailyBonus: 5,
		SpeedBonus:      10,
		SpeedWindow:     30 * time.Minute,
		Stamina: StaminaRules{
			Base:         100,
			RegenPerHour: 20,
			Tiers: []StaminaTier{
				{Level: 10, Max: 120},
				{Level: 25, Max: 150},
				{Level: 50, Max: 200},
			},
		},
		Streak: StreakRules{
			ResetHour:      3,
			Milestones:     []int{3, 7, 14, 30, 60, 100, 365},
			BonusStep:      0.1,
			MaxMultiplier:  2.0,
			MinDays:        3,
			SweepGraceDays: 1,
		},
		Skills: SkillRules{
			Trees:      []string{"culinary", "domestic", "logistics", "maintenance", "habits"},
			MaxLevel:   10,
			XPPerLevel: 1000,
		},
		XP: XPRules{
			PerPoint:  1,
			LevelStep: 1000,
			MaxLevel:  99,
		},
		Location: time.Local,
	}
}

// Validate 校验规则并规整有序字段
func (r *Rules) Validate() error {
	if r == nil {
		return fmt.Errorf("rules 为空")
	}
	if len(r.Points) == 0 {
		return fmt.Errorf("未配置任务类别")
	}
	for cat, pts := range r.Points {
		if pts < 0 {
			return fmt.Errorf("类别 %s 的积分不能为负", cat)
		}
		cost, ok := r.StaminaCosts[cat]
		if !ok {
			return fmt.Errorf("类别 %s 缺少体力消耗配置", cat)
		}
		if cost < 0 {
			return fmt.Errorf("类别 %s 的体力消耗不能为负", cat)
		}
	}
	if r.Stamina.Base <= 0 {
		return fmt.Errorf("stamina.base 必须大于 0")
	}
	if r.Stamina.RegenPerHour < 0 {
		return fmt.Errorf("stamina.regen_per_hour 不能为负")
	}
	if r.Streak.ResetHour < 0 || r.Streak.ResetHour > 23 {
		return fmt.Errorf("streaks.reset_hour 必须在 0-23 之间")
	}
	if r.Streak.MaxMultiplier < 1 {
		return fmt.Errorf("streaks.max_multiplier 不能小于 1")
	}
	if r.Streak.SweepGraceDays < 0 {
		return fmt.Errorf("streaks.sweep_grace_days 不能为负")
	}
	if r.Skills.MaxLevel <= 0 || r.Skills.XPPerLevel <= 0 {
		return fmt.Errorf("skills.max_level 与 skills.xp_per_level 必须大于 0")
	}
	if r.XP.MaxLevel <= 0 || r.XP.LevelStep <= 0 {
		return fmt.Errorf("xp.max_level 与 xp.level_step 必须大于 0")
	}
	if r.XP.PerPoint < 0 {
		return fmt.Errorf("xp.per_point 不能为负")
	}
	if r.Location == nil {
		r.Location = time.Local
	}

	sort.Slice(r.Stamina.Tiers, func(i, j int) bool { return r.Stamina.Tiers[i].Level < r.Stamina.Tiers[j].Level })
	sort.Ints(r.Streak.Milestones)
	return nil
}

// PointsFor 类别基础积分
func (r *Rules) PointsFor(cat Category) (int64, error) {
	pts, ok := r.Points[cat]
	if !ok {
		return 0, fmt.Errorf("%q: %w", cat, ErrUnknownCategory)
	}
	return pts, nil
}

// CostFor 类别体力消耗
func (r *Rules) CostFor(cat Category) (int, error) {
	cost, ok := r.StaminaCosts[cat]
	if !ok {
		return 0, fmt.Errorf("%q: %w", cat, ErrUnknownCategory)
	}
	return cost, nil
}

// CheckSkillTree 技能树必须是配置中的一项
func (r *Rules) CheckSkillTree(tree string) error {
	for _, t := range r.Skills.Trees {
		if t == tree {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", tree, ErrUnknownSkillTree)
}

// MaxStaminaFor 按等级取体力上限，取满足条件的最高档
func (r *Rules) MaxStaminaFor(level int) int {
	limit := r.Stamina.Base
	for _, tier := range r.Stamina.Tiers {
		if level >= tier.Level && tier.Max > limit {
			limit = tier.Max
		}
	}
	return limit
}

// StartOfDay 规则时区下的自然日零点
func (r *Rules) StartOfDay(t time.Time) time.Time {
	return repository.StartOfDay(t, r.Location)
}

// XPForPoints 积分换算经验（向下取整）
func (r *Rules) XPForPoints(points int64) int64 {
	if points <= 0 {
		return 0
	}
	return int64(math.Floor(float64(points) * r.XP.PerPoint))
}

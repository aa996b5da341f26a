package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/schema"
)

// XPResult 一次全局经验发放的结果
type XPResult struct {
	XPAwarded     int64        `json:"xp_awarded"`
	TotalXP       int64        `json:"total_xp"`
	LeveledUp     bool         `json:"leveled_up"`
	NewLevel      int          `json:"new_level,omitempty"`
	PreviousLevel int          `json:"previous_level"`
	Skill         *SkillResult `json:"skill,omitempty"`
}

// SkillResult 一次技能树经验发放的结果
type SkillResult struct {
	Tree         string `json:"tree"`
	XP           int64  `json:"xp"`
	Level        int    `json:"level"`
	LevelsGained int    `json:"levels_gained"`
}

// SkillStatus 技能树进度
type SkillStatus struct {
	Level              int     `json:"level"`
	XP                 int64   `json:"xp"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// ProgressionService 全局等级（递增曲线）与技能树等级（平坦曲线）
type ProgressionService struct {
	store  Store
	rules  *Rules
	policy LevelPolicy
	now    Clock
}

// NewProgressionService 创建成长服务
func NewProgressionService(store Store, rules *Rules, policy LevelPolicy, now Clock) *ProgressionService {
	if policy == nil {
		policy = DefaultLevelPolicy{Step: rules.XP.LevelStep, Max: rules.XP.MaxLevel}
	}
	if now == nil {
		now = time.Now
	}
	return &ProgressionService{store: store, rules: rules, policy: policy, now: now}
}

// awardXP 累加经验并重算等级；升级时同步刷新体力上限
func (s *ProgressionService) awardXP(stats *schema.UserGameStats, amount int64) XPResult {
	res := XPResult{XPAwarded: amount, PreviousLevel: stats.Level}
	stats.TotalXP += amount
	level := s.policy.LevelFromXP(stats.TotalXP)
	if level > stats.Level {
		res.LeveledUp = true
		res.NewLevel = level
		slog.Info("用户升级", "user", stats.UserID, "from", stats.Level, "to", level)
	}
	stats.Level = level
	stats.MaxStamina = s.rules.MaxStaminaFor(level)
	res.TotalXP = stats.TotalXP
	return res
}

func (s *ProgressionService) awardSkillXP(ctx context.Context, r Repos, userID, tree string, amount int64, now time.Time) (*SkillResult, error) {
	p, err := r.Skills.Get(ctx, userID, tree)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = schema.NewSkillProgress(userID, tree)
	}
	gained := p.AddXP(amount, s.rules.Skills.XPPerLevel, s.rules.Skills.MaxLevel, now)
	if err := r.Skills.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return &SkillResult{Tree: tree, XP: p.XP, Level: p.Level, LevelsGained: gained}, nil
}

// AwardXP 发放全局经验；skillTree 非空时同一事务内发放同等技能树经验
func (s *ProgressionService) AwardXP(ctx context.Context, userID string, amount int64, skillTree string) (XPResult, error) {
	if amount < 0 {
		return XPResult{}, fmt.Errorf("经验 %d: %w", amount, ErrInvalidAmount)
	}
	if skillTree != "" {
		if err := s.rules.CheckSkillTree(skillTree); err != nil {
			return XPResult{}, err
		}
	}
	now := s.now()
	var out XPResult
	err := s.store.WithinTx(ctx, func(r Repos) error {
		stats, err := loadStatsForUpdate(ctx, r, s.rules, userID, now)
		if err != nil {
			return err
		}
		res := s.awardXP(stats, amount)
		if skillTree != "" {
			if res.Skill, err = s.awardSkillXP(ctx, r, userID, skillTree, amount, now); err != nil {
				return err
			}
		}
		if err := r.Stats.Save(ctx, stats); err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// GetLevelInfo 全局等级进度
func (s *ProgressionService) GetLevelInfo(ctx context.Context, userID string) (LevelInfo, error) {
	stats, err := readStats(ctx, s.store.Repos(), s.rules, userID, s.now())
	if err != nil {
		return LevelInfo{}, err
	}
	return levelInfo(s.policy, stats.TotalXP), nil
}

// AwardSkillXP 只发放技能树经验，不影响全局等级
func (s *ProgressionService) AwardSkillXP(ctx context.Context, userID, tree string, amount int64) (SkillResult, error) {
	if userID == "" {
		return SkillResult{}, ErrInvalidUser
	}
	if err := s.rules.CheckSkillTree(tree); err != nil {
		return SkillResult{}, err
	}
	if amount < 0 {
		return SkillResult{}, fmt.Errorf("经验 %d: %w", amount, ErrInvalidAmount)
	}
	now := s.now()
	var out SkillResult
	err := s.store.WithinTx(ctx, func(r Repos) error {
		res, err := s.awardSkillXP(ctx, r, userID, tree, amount, now)
		if err != nil {
			return err
		}
		out = *res
		return nil
	})
	return out, err
}

// skillStatus 进度在 [0,100) 之间，满级时恰为 100
func (s *ProgressionService) skillStatus(xp int64, level int) SkillStatus {
	st := SkillStatus{Level: level, XP: xp}
	switch {
	case level <= 0:
		st.ProgressPercentage = 0
	case level >= s.rules.Skills.MaxLevel:
		st.ProgressPercentage = 100
	default:
		per := s.rules.Skills.XPPerLevel
		st.ProgressPercentage = float64(xp%per) / float64(per) * 100
	}
	return st
}

func (s *ProgressionService) skillProgress(ctx context.Context, r Repos, userID string) (map[string]SkillStatus, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	rows, err := r.Skills.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]SkillStatus, len(s.rules.Skills.Trees))
	for _, tree := range s.rules.Skills.Trees {
		out[tree] = s.skillStatus(0, 0)
	}
	for _, p := range rows {
		out[p.SkillTree] = s.skillStatus(p.XP, p.Level)
	}
	return out, nil
}

// GetSkillProgress 所有技能树进度，未接触的技能树为 0 级
func (s *ProgressionService) GetSkillProgress(ctx context.Context, userID string) (map[string]SkillStatus, error) {
	return s.skillProgress(ctx, s.store.Repos(), userID)
}

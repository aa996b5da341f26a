package service

import (
	"context"
	"math"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/schema"
)

const msPerHour = float64(time.Hour / time.Millisecond)

// StaminaStatus 体力快照
type StaminaStatus struct {
	Current               int   `json:"current"`
	Max                   int   `json:"max"`
	SecondsUntilNextRegen int64 `json:"seconds_until_next_regen"`
}

// ConsumeResult 领取任务的体力扣减结果。体力不足是正常业务结果，不是错误。
type ConsumeResult struct {
	Success   bool `json:"success"`
	Remaining int  `json:"remaining"`
	Cost      int  `json:"cost"`
	Max       int  `json:"max"`
}

// StaminaService 体力：有上限、按时间惰性回复的资源
type StaminaService struct {
	store Store
	rules *Rules
	now   Clock
}

// NewStaminaService 创建体力服务
func NewStaminaService(store Store, rules *Rules, now Clock) *StaminaService {
	if now == nil {
		now = time.Now
	}
	return &StaminaService{store: store, rules: rules, now: now}
}

// regenerate 按经过时间回复体力并刷新等级上限，返回是否需要落库。
// 只有实际回复了体力才重置 LastStaminaUpdate。
func (s *StaminaService) regenerate(stats *schema.UserGameStats, now time.Time) bool {
	changed := false
	limit := s.rules.MaxStaminaFor(stats.Level)
	if stats.MaxStamina != limit {
		stats.MaxStamina = limit
		changed = true
	}
	if stats.CurrentStamina > limit {
		stats.CurrentStamina = limit
		changed = true
	}
	if stats.CurrentStamina < 0 {
		stats.CurrentStamina = 0
		changed = true
	}

	elapsedMs := now.UnixMilli() - stats.LastStaminaUpdate
	if elapsedMs <= 0 || s.rules.Stamina.RegenPerHour <= 0 {
		return changed
	}
	regenerated := int(math.Floor(float64(elapsedMs) * s.rules.Stamina.RegenPerHour / msPerHour))
	if regenerated <= 0 {
		return changed
	}
	stats.CurrentStamina = min(stats.CurrentStamina+regenerated, limit)
	stats.LastStaminaUpdate = now.UnixMilli()
	return true
}

func (s *StaminaService) status(stats *schema.UserGameStats, now time.Time) StaminaStatus {
	st := StaminaStatus{Current: stats.CurrentStamina, Max: stats.MaxStamina}
	rate := s.rules.Stamina.RegenPerHour
	if stats.CurrentStamina >= stats.MaxStamina || rate <= 0 {
		return st
	}
	perPointMs := msPerHour / rate
	elapsed := float64(now.UnixMilli() - stats.LastStaminaUpdate)
	if elapsed < 0 {
		elapsed = 0
	}
	remainMs := perPointMs - math.Mod(elapsed, perPointMs)
	st.SecondsUntilNextRegen = int64(math.Ceil(remainMs / 1000))
	return st
}

// Peek 计算当前体力但不落库
func (s *StaminaService) Peek(stats *schema.UserGameStats, now time.Time) StaminaStatus {
	cp := *stats
	s.regenerate(&cp, now)
	return s.status(&cp, now)
}

// GetCurrent 读取体力；有回复时落库
func (s *StaminaService) GetCurrent(ctx context.Context, userID string) (StaminaStatus, error) {
	now := s.now()
	var st StaminaStatus
	err := s.store.WithinTx(ctx, func(r Repos) error {
		stats, err := loadStatsForUpdate(ctx, r, s.rules, userID, now)
		if err != nil {
			return err
		}
		if s.regenerate(stats, now) {
			if err := r.Stats.Save(ctx, stats); err != nil {
				return err
			}
		}
		st = s.status(stats, now)
		return nil
	})
	return st, err
}

// consume 在已回复的 stats 上扣减；不足时不做任何修改
func (s *StaminaService) consume(stats *schema.UserGameStats, cost int, now time.Time) bool {
	if stats.CurrentStamina < cost {
		return false
	}
	// 满体力期间不计回复，从扣减时刻开始重新计时
	if stats.CurrentStamina >= stats.MaxStamina {
		stats.LastStaminaUpdate = now.UnixMilli()
	}
	stats.CurrentStamina -= cost
	return true
}

// ConsumeForTask 按类别扣减体力。同一用户的并发扣减由版本号比较并交换串行化，
// 冲突时返回可重试错误。
func (s *StaminaService) ConsumeForTask(ctx context.Context, userID string, cat Category) (ConsumeResult, error) {
	if userID == "" {
		return ConsumeResult{}, ErrInvalidUser
	}
	cost, err := s.rules.CostFor(cat)
	if err != nil {
		return ConsumeResult{}, err
	}
	now := s.now()
	res := ConsumeResult{Cost: cost}
	err = s.store.WithinTx(ctx, func(r Repos) error {
		stats, err := loadStatsForUpdate(ctx, r, s.rules, userID, now)
		if err != nil {
			return err
		}
		s.regenerate(stats, now)
		res.Max = stats.MaxStamina
		if !s.consume(stats, cost, now) {
			res.Success = false
			res.Remaining = stats.CurrentStamina
			return nil
		}
		if err := r.Stats.Save(ctx, stats); err != nil {
			return err
		}
		res.Success = true
		res.Remaining = stats.CurrentStamina
		return nil
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	return res, nil
}

// HasEnoughFor 只读检查
func (s *StaminaService) HasEnoughFor(ctx context.Context, userID string, cat Category) (bool, error) {
	cost, err := s.rules.CostFor(cat)
	if err != nil {
		return false, err
	}
	now := s.now()
	stats, err := readStats(ctx, s.store.Repos(), s.rules, userID, now)
	if err != nil {
		return false, err
	}
	return s.Peek(stats, now).Current >= cost, nil
}

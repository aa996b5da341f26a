package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameStatsRepository 用户游戏数据仓储
type GameStatsRepository struct {
	db *gorm.DB
}

// NewGameStatsRepository 创建仓储
func NewGameStatsRepository(db *gorm.DB) *GameStatsRepository {
	return &GameStatsRepository{db: db}
}

// Get 按用户获取，不存在返回 nil
func (r *GameStatsRepository) Get(ctx context.Context, userID string) (*schema.UserGameStats, error) {
	var stats schema.UserGameStats
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户数据失败: %w", err)
	}
	return &stats, nil
}

// GetOrCreate 获取用户数据；首次访问时以 defaults 初始化
func (r *GameStatsRepository) GetOrCreate(ctx context.Context, defaults *schema.UserGameStats) (*schema.UserGameStats, error) {
	if defaults == nil || defaults.UserID == "" {
		return nil, fmt.Errorf("user_id 不能为空")
	}
	stats, err := r.Get(ctx, defaults.UserID)
	if err != nil || stats != nil {
		return stats, err
	}

	// 并发首访时只有一方插入成功，另一方读到已存在的行
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(defaults).Error; err != nil {
		return nil, fmt.Errorf("初始化用户数据失败: %w", err)
	}
	return r.Get(ctx, defaults.UserID)
}

// Save 以 version 做比较并交换写回整行；版本不符返回 ErrConflict。
// 成功后 stats.Version 自增。
func (r *GameStatsRepository) Save(ctx context.Context, stats *schema.UserGameStats) error {
	res := r.db.WithContext(ctx).
		Model(&schema.UserGameStats{}).
		Where("user_id = ? AND version = ?", stats.UserID, stats.Version).
		Updates(map[string]any{
			"total_points":          stats.TotalPoints,
			"total_xp":              stats.TotalXP,
			"level":                 stats.Level,
			"current_streak":        stats.CurrentStreak,
			"longest_streak":        stats.LongestStreak,
			"total_tasks_completed": stats.TotalTasksCompleted,
			"last_active_at":        stats.LastActiveAt,
			"current_stamina":       stats.CurrentStamina,
			"max_stamina":           stats.MaxStamina,
			"last_stamina_update":   stats.LastStaminaUpdate,
			"version":               stats.Version + 1,
			"updated_at":            time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("更新用户数据失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user=%s version=%d: %w", stats.UserID, stats.Version, ErrConflict)
	}
	stats.Version++
	return nil
}

// ResetInactiveStreaks 将 sinceMs 之后既无完成记录、也无活跃时间的用户连胜清零，返回受影响行数
func (r *GameStatsRepository) ResetInactiveStreaks(ctx context.Context, sinceMs int64) (int64, error) {
	active := r.db.Model(&schema.TaskCompletion{}).
		Select("1").
		Where("task_completions.user_id = user_game_stats.user_id AND task_completions.timestamp >= ?", sinceMs)

	res := r.db.WithContext(ctx).
		Model(&schema.UserGameStats{}).
		Where("current_streak > 0 AND last_active_at < ?", sinceMs).
		Where("NOT EXISTS (?)", active).
		Updates(map[string]any{
			"current_streak": 0,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("重置连胜失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// TopByPoints 积分排行（同分按最长连胜）
func (r *GameStatsRepository) TopByPoints(ctx context.Context, limit int) ([]schema.UserGameStats, error) {
	var out []schema.UserGameStats
	err := r.db.WithContext(ctx).
		Order("total_points DESC, longest_streak DESC, user_id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询排行失败: %w", err)
	}
	return out, nil
}

// Count 已有数据的用户数
func (r *GameStatsRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&schema.UserGameStats{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计用户数失败: %w", err)
	}
	return n, nil
}

package service

import (
	"context"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/schema"
)

func defaultStats(rules *Rules, userID string, now time.Time) *schema.UserGameStats {
	return schema.NewUserGameStats(userID, rules.MaxStaminaFor(1), now)
}

// loadStatsForUpdate 写路径：不存在则以默认值落库
func loadStatsForUpdate(ctx context.Context, r Repos, rules *Rules, userID string, now time.Time) (*schema.UserGameStats, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	return r.Stats.GetOrCreate(ctx, defaultStats(rules, userID, now))
}

// readStats 读路径：不存在时返回默认值但不落库
func readStats(ctx context.Context, r Repos, rules *Rules, userID string, now time.Time) (*schema.UserGameStats, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	stats, err := r.Stats.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return defaultStats(rules, userID, now), nil
	}
	return stats, nil
}

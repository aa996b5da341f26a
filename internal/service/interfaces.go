package service

import (
	"context"

	"github.com/yuqie6/ChoreQuest/internal/schema"
)

// 仓储的最小接口集合（ISP）

type GameStatsRepository interface {
	Get(ctx context.Context, userID string) (*schema.UserGameStats, error)
	GetOrCreate(ctx context.Context, defaults *schema.UserGameStats) (*schema.UserGameStats, error)
	Save(ctx context.Context, stats *schema.UserGameStats) error
	ResetInactiveStreaks(ctx context.Context, sinceMs int64) (int64, error)
	TopByPoints(ctx context.Context, limit int) ([]schema.UserGameStats, error)
	Count(ctx context.Context) (int64, error)
}

type SkillProgressRepository interface {
	Get(ctx context.Context, userID, tree string) (*schema.SkillProgress, error)
	ListByUser(ctx context.Context, userID string) ([]schema.SkillProgress, error)
	Upsert(ctx context.Context, p *schema.SkillProgress) error
}

type PointTransactionRepository interface {
	Append(ctx context.Context, tx *schema.PointTransaction) error
	SumPositiveSince(ctx context.Context, userID string, sinceMs int64) (int64, error)
	SumByUser(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]schema.PointTransaction, error)
}

type CompletionRepository interface {
	Create(ctx context.Context, c *schema.TaskCompletion) error
	Get(ctx context.Context, userID, taskID string) (*schema.TaskCompletion, error)
	CountInRange(ctx context.Context, userID string, startMs, endMs int64) (int64, error)
}

// Repos 同一连接（或同一事务）上的一组仓储
type Repos struct {
	Stats       GameStatsRepository
	Skills      SkillProgressRepository
	Ledger      PointTransactionRepository
	Completions CompletionRepository
}

// Store 提供仓储与事务边界
type Store interface {
	Repos() Repos
	// WithinTx 在单个事务内执行 fn；fn 返回错误则整体回滚
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

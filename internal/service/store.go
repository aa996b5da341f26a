package service

import (
	"context"

	"github.com/yuqie6/ChoreQuest/internal/repository"
	"gorm.io/gorm"
)

// GormStore 基于 gorm 的 Store 实现
type GormStore struct {
	db *gorm.DB
}

// NewStore 创建 Store
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func reposFor(db *gorm.DB) Repos {
	return Repos{
		Stats:       repository.NewGameStatsRepository(db),
		Skills:      repository.NewSkillProgressRepository(db),
		Ledger:      repository.NewPointTransactionRepository(db),
		Completions: repository.NewCompletionRepository(db),
	}
}

// Repos 非事务仓储，用于只读查询
func (s *GormStore) Repos() Repos {
	return reposFor(s.db)
}

// WithinTx 事务内的仓储必须全部来自 tx，不能混用 s.db
func (s *GormStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

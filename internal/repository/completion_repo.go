package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/ChoreQuest/internal/schema"
	"gorm.io/gorm"
)

// CompletionRepository 任务完成记录仓储
type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Create 写入完成记录；同一 (user, task) 重复写入返回 ErrDuplicate
func (r *CompletionRepository) Create(ctx context.Context, c *schema.TaskCompletion) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user=%s task=%s: %w", c.UserID, c.TaskID, ErrDuplicate)
		}
		return fmt.Errorf("写入完成记录失败: %w", err)
	}
	return nil
}

// Get 按 (user, task) 获取，不存在返回 nil
func (r *CompletionRepository) Get(ctx context.Context, userID, taskID string) (*schema.TaskCompletion, error) {
	var c schema.TaskCompletion
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询完成记录失败: %w", err)
	}
	return &c, nil
}

// CountInRange 统计 [startMs, endMs) 内的完成次数
func (r *CompletionRepository) CountInRange(ctx context.Context, userID string, startMs, endMs int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.TaskCompletion{}).
		Where("user_id = ? AND timestamp >= ? AND timestamp < ?", userID, startMs, endMs).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计完成记录失败: %w", err)
	}
	return count, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/ChoreQuest/internal/schema"
	"gorm.io/gorm"
)

// PointTransactionRepository 积分流水仓储（只追加）
type PointTransactionRepository struct {
	db *gorm.DB
}

func NewPointTransactionRepository(db *gorm.DB) *PointTransactionRepository {
	return &PointTransactionRepository{db: db}
}

// Append 追加一条流水
func (r *PointTransactionRepository) Append(ctx context.Context, tx *schema.PointTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tx_id=%s: %w", tx.TxID, ErrDuplicate)
		}
		return fmt.Errorf("写入积分流水失败: %w", err)
	}
	return nil
}

// SumPositiveSince 统计 sinceMs 之后的正向积分（“今日获得”）
func (r *PointTransactionRepository) SumPositiveSince(ctx context.Context, userID string, sinceMs int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&schema.PointTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND timestamp >= ? AND amount > 0", userID, sinceMs).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("统计今日积分失败: %w", err)
	}
	return total, nil
}

// SumByUser 用户全部流水之和，应与 UserGameStats.TotalPoints 一致
func (r *PointTransactionRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&schema.PointTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("统计积分流水失败: %w", err)
	}
	return total, nil
}

// ListByUser 最近的流水，按时间倒序
func (r *PointTransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]schema.PointTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []schema.PointTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询积分流水失败: %w", err)
	}
	return out, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/ChoreQuest/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SkillProgressRepository 技能树进度仓储
type SkillProgressRepository struct {
	db *gorm.DB
}

// NewSkillProgressRepository 创建仓储
func NewSkillProgressRepository(db *gorm.DB) *SkillProgressRepository {
	return &SkillProgressRepository{db: db}
}

// Get 获取用户某棵技能树的进度，不存在返回 nil
func (r *SkillProgressRepository) Get(ctx context.Context, userID, tree string) (*schema.SkillProgress, error) {
	var p schema.SkillProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND skill_tree = ?", userID, tree).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询技能进度失败: %w", err)
	}
	return &p, nil
}

// ListByUser 获取用户全部技能树进度
func (r *SkillProgressRepository) ListByUser(ctx context.Context, userID string) ([]schema.SkillProgress, error) {
	var out []schema.SkillProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("level DESC, xp DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询技能进度失败: %w", err)
	}
	return out, nil
}

// Upsert 插入或更新技能树进度，以 (user_id, skill_tree) 为冲突键
func (r *SkillProgressRepository) Upsert(ctx context.Context, p *schema.SkillProgress) error {
	row := *p
	row.ID = 0 // 主键不参与冲突判定
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_tree"}},
		DoUpdates: clause.AssignmentColumns([]string{"xp", "level", "last_active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("写入技能进度失败: %w", err)
	}
	return nil
}

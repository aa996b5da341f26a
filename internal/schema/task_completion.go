package schema

import (
	"time"

	"gorm.io/datatypes"
)

// TaskCompletion 一次任务完成的结算快照。
// (user_id, task_id) 唯一，既是 streak 的"今日/昨日"计数来源，也是 complete 的幂等键：
// 重试时直接回放快照，不会重复发放积分和经验。
type TaskCompletion struct {
	ID        int64                              `gorm:"primaryKey;autoIncrement"`
	UserID    string                             `gorm:"size:64;not null;uniqueIndex:uniq_user_task,priority:1;index:idx_completion_user_time,priority:1"`
	TaskID    string                             `gorm:"size:64;not null;uniqueIndex:uniq_user_task,priority:2"`
	Category  string                             `gorm:"size:16;not null"`
	SkillTree string                             `gorm:"size:32"`
	Points    int64                              `gorm:"not null"`
	Streak    int                                `gorm:"not null"`
	XPAwarded int64                              `gorm:"column:xp_awarded;not null;default:0"`
	TotalXP   int64                              `gorm:"column:total_xp;not null"`
	LeveledUp bool                               `gorm:"not null;default:false"`
	NewLevel  int                                `gorm:"not null;default:0"`
	Breakdown datatypes.JSONType[PointsMetadata] `gorm:"type:text"`
	Timestamp int64                              `gorm:"not null;index:idx_completion_user_time,priority:2"` // Unix ms
	CreatedAt time.Time                          `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (TaskCompletion) TableName() string {
	return "task_completions"
}

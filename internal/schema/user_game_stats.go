package schema

import "time"

// UserGameStats 用户游戏数据，每个用户一行
// 数据量级：用户数
type UserGameStats struct {
	UserID              string    `gorm:"primaryKey;size:64"`
	TotalPoints         int64     `gorm:"not null;default:0;index"`
	TotalXP             int64     `gorm:"column:total_xp;not null;default:0"`
	Level               int       `gorm:"not null;default:1"` // 由 TotalXP 推导的缓存值
	CurrentStreak       int       `gorm:"not null;default:0"`
	LongestStreak       int       `gorm:"not null;default:0"`
	TotalTasksCompleted int64     `gorm:"not null;default:0"`
	LastActiveAt        int64     `gorm:"index"` // 最后一次完成任务 (Unix ms)
	CurrentStamina      int       `gorm:"not null"`
	MaxStamina          int       `gorm:"not null"`
	LastStaminaUpdate   int64     `gorm:"not null"`           // Unix ms
	Version             int64     `gorm:"not null;default:0"` // 乐观锁版本号，每次写入 +1
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (UserGameStats) TableName() string {
	return "user_game_stats"
}

// NewUserGameStats 首次访问时的默认数据：满体力、1 级、无连胜
func NewUserGameStats(userID string, baseStamina int, now time.Time) *UserGameStats {
	return &UserGameStats{
		UserID:            userID,
		Level:             1,
		CurrentStamina:    baseStamina,
		MaxStamina:        baseStamina,
		LastStaminaUpdate: now.UnixMilli(),
	}
}

// ApplyStreak 设置当前连胜并维护 LongestStreak >= CurrentStreak
func (s *UserGameStats) ApplyStreak(streak int) {
	if streak < 0 {
		streak = 0
	}
	s.CurrentStreak = streak
	if streak > s.LongestStreak {
		s.LongestStreak = streak
	}
}

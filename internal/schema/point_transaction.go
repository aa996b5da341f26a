package schema

import (
	"time"

	"gorm.io/datatypes"
)

// PointTransactionType 积分流水类型
type PointTransactionType string

const (
	PointTxTaskCompletion  PointTransactionType = "task_completion"
	PointTxBonus           PointTransactionType = "bonus"
	PointTxRefund          PointTransactionType = "refund"
	PointTxAdminAdjustment PointTransactionType = "admin_adjustment"
)

// PointsMetadata 积分明细。结构固定，取代开放式 JSON 文档。
type PointsMetadata struct {
	TxID            string  `json:"tx_id,omitempty"`
	TaskID          string  `json:"task_id,omitempty"`
	Category        string  `json:"category,omitempty"`
	Base            int64   `json:"base"`
	FirstDailyBonus int64   `json:"first_daily_bonus,omitempty"`
	SpeedBonus      int64   `json:"speed_bonus,omitempty"`
	Subtotal        int64   `json:"subtotal"`
	StreakBonus     int64   `json:"streak_bonus"`
	StreakDays      int     `json:"streak_days"`
	Multiplier      float64 `json:"multiplier"`
	IsFirstDaily    bool    `json:"is_first_daily,omitempty"`
	IsSpeedBonus    bool    `json:"is_speed_bonus,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// PointTransaction 积分流水（只追加，不修改、不删除）
// 数据量级：万级/年/用户
type PointTransaction struct {
	ID        int64                              `gorm:"primaryKey;autoIncrement"`
	TxID      string                             `gorm:"column:tx_id;size:36;not null;uniqueIndex"`
	UserID    string                             `gorm:"size:64;not null;index:idx_point_tx_user_time,priority:1"`
	Amount    int64                              `gorm:"not null"` // 可为负（扣减/调整）
	Type      PointTransactionType               `gorm:"size:32;not null;index"`
	Metadata  datatypes.JSONType[PointsMetadata] `gorm:"type:text"`
	Timestamp int64                              `gorm:"not null;index:idx_point_tx_user_time,priority:2"` // Unix ms
	CreatedAt time.Time                          `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (PointTransaction) TableName() string {
	return "point_transactions"
}

package dto

// 注意：本包用于承载“对外契约”的 DTO（与任务系统/HTTP API 保持稳定）。
// 不要在这里放 GORM/持久化细节；内部持久化 schema 请见 internal/schema；结算逻辑收敛在 internal/service。

type ClaimRequestDTO struct {
	UserID   string `json:"user_id"`
	TaskID   string `json:"task_id"`
	Category string `json:"category"`
}

type ClaimResponseDTO struct {
	Success   bool  `json:"success"`
	Remaining int   `json:"remaining"`
	Cost      int   `json:"cost"`
	Max       int   `json:"max"`
	ClaimedAt int64 `json:"claimed_at"`
}

type CompleteRequestDTO struct {
	UserID       string `json:"user_id"`
	TaskID       string `json:"task_id"`
	Category     string `json:"category"`
	IsFirstDaily bool   `json:"is_first_daily"`
	IsSpeedBonus bool   `json:"is_speed_bonus"`
	SkillTree    string `json:"skill_tree,omitempty"`
	ClaimedAt    int64  `json:"claimed_at,omitempty"`
}

type AdjustPointsRequestDTO struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Type   string `json:"type,omitempty"` // "bonus" | "refund" | "admin_adjustment"
	Reason string `json:"reason,omitempty"`
}

type AdjustPointsResponseDTO struct {
	TxID      string `json:"tx_id"`
	Amount    int64  `json:"amount"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
}

type SweepResultDTO struct {
	Reset       int64 `json:"reset"`
	NextSweepAt int64 `json:"next_sweep_at"`
}

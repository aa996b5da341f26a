package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/ChoreQuest/internal/schema"
	"gorm.io/datatypes"
)

// AwardFlags 结算时的平铺加成标记
type AwardFlags struct {
	IsFirstDaily bool `json:"is_first_daily"`
	IsSpeedBonus bool `json:"is_speed_bonus"`
}

// PointsBreakdown 一次发放的积分明细
type PointsBreakdown struct {
	TxID            string   `json:"tx_id,omitempty"`
	Category        Category `json:"category"`
	Base            int64    `json:"base"`
	FirstDailyBonus int64    `json:"first_daily_bonus"`
	SpeedBonus      int64    `json:"speed_bonus"`
	Subtotal        int64    `json:"subtotal"`
	StreakBonus     int64    `json:"streak_bonus"`
	StreakDays      int      `json:"streak_days"`
	Multiplier      float64  `json:"multiplier"`
	Total           int64    `json:"total"`
	IsFirstDaily    bool     `json:"is_first_daily"`
	IsSpeedBonus    bool     `json:"is_speed_bonus"`
}

func (b PointsBreakdown) metadata(taskID string) schema.PointsMetadata {
	return schema.PointsMetadata{
		TxID:            b.TxID,
		TaskID:          taskID,
		Category:        string(b.Category),
		Base:            b.Base,
		FirstDailyBonus: b.FirstDailyBonus,
		SpeedBonus:      b.SpeedBonus,
		Subtotal:        b.Subtotal,
		StreakBonus:     b.StreakBonus,
		StreakDays:      b.StreakDays,
		Multiplier:      b.Multiplier,
		IsFirstDaily:    b.IsFirstDaily,
		IsSpeedBonus:    b.IsSpeedBonus,
	}
}

func breakdownFromMetadata(m schema.PointsMetadata, total int64) PointsBreakdown {
	return PointsBreakdown{
		TxID:            m.TxID,
		Category:        Category(m.Category),
		Base:            m.Base,
		FirstDailyBonus: m.FirstDailyBonus,
		SpeedBonus:      m.SpeedBonus,
		Subtotal:        m.Subtotal,
		StreakBonus:     m.StreakBonus,
		StreakDays:      m.StreakDays,
		Multiplier:      m.Multiplier,
		Total:           total,
		IsFirstDaily:    m.IsFirstDaily,
		IsSpeedBonus:    m.IsSpeedBonus,
	}
}

// StreakBonusRate 连胜加成比例：不足 MinDays 为 0，之后每 10 天一档，封顶 MaxMultiplier-1
func (r *Rules) StreakBonusRate(streak int) float64 {
	if streak < r.Streak.MinDays {
		return 0
	}
	rate := float64(streak/10) * r.Streak.BonusStep
	if ceiling := r.Streak.MaxMultiplier - 1; rate > ceiling {
		rate = ceiling
	}
	// 消除 0.1*n 的浮点尾差
	return math.Round(rate*1e6) / 1e6
}

// StreakBonus 对小计应用连胜加成，向下取整
func (r *Rules) StreakBonus(subtotal int64, streak int) (int64, float64) {
	rate := r.StreakBonusRate(streak)
	if rate <= 0 || subtotal <= 0 {
		return 0, rate
	}
	return int64(math.Floor(float64(subtotal)*rate + 1e-9)), rate
}

// Breakdown 纯计算：基础分 + 平铺加成，再对小计应用连胜加成
func (r *Rules) Breakdown(cat Category, flags AwardFlags, streak int) (PointsBreakdown, error) {
	base, err := r.PointsFor(cat)
	if err != nil {
		return PointsBreakdown{}, err
	}
	b := PointsBreakdown{
		Category:     cat,
		Base:         base,
		StreakDays:   streak,
		IsFirstDaily: flags.IsFirstDaily,
		IsSpeedBonus: flags.IsSpeedBonus,
	}
	if flags.IsFirstDaily {
		b.FirstDailyBonus = r.FirstDailyBonus
	}
	if flags.IsSpeedBonus {
		b.SpeedBonus = r.SpeedBonus
	}
	b.Subtotal = b.Base + b.FirstDailyBonus + b.SpeedBonus
	b.StreakBonus, b.Multiplier = r.StreakBonus(b.Subtotal, streak)
	b.Total = b.Subtotal + b.StreakBonus
	return b, nil
}

// LedgerReport 流水与汇总的一致性核对
type LedgerReport struct {
	UserID      string `json:"user_id"`
	TotalPoints int64  `json:"total_points"`
	LedgerSum   int64  `json:"ledger_sum"`
	Consistent  bool   `json:"consistent"`
}

// AdjustRequest 人工调整积分
type AdjustRequest struct {
	UserID string
	Amount int64
	Type   schema.PointTransactionType
	Reason string
}

// PointsService 积分：只追加的流水 + 汇总
type PointsService struct {
	store Store
	rules *Rules
	now   Clock
}

// NewPointsService 创建积分服务
func NewPointsService(store Store, rules *Rules, now Clock) *PointsService {
	if now == nil {
		now = time.Now
	}
	return &PointsService{store: store, rules: rules, now: now}
}

// award 追加流水并累加 stats.TotalPoints；调用方负责在同一事务里写回 stats
func (s *PointsService) award(ctx context.Context, r Repos, stats *schema.UserGameStats, taskID string, cat Category, flags AwardFlags, now time.Time) (PointsBreakdown, error) {
	b, err := s.rules.Breakdown(cat, flags, stats.CurrentStreak)
	if err != nil {
		return PointsBreakdown{}, err
	}
	b.TxID = uuid.NewString()

	tx := &schema.PointTransaction{
		TxID:      b.TxID,
		UserID:    stats.UserID,
		Amount:    b.Total,
		Type:      schema.PointTxTaskCompletion,
		Metadata:  datatypes.NewJSONType(b.metadata(taskID)),
		Timestamp: now.UnixMilli(),
	}
	if err := r.Ledger.Append(ctx, tx); err != nil {
		return PointsBreakdown{}, err
	}
	stats.TotalPoints += b.Total
	return b, nil
}

// AwardTaskPoints 按当前连胜发放任务积分；流水与汇总同一事务写入
func (s *PointsService) AwardTaskPoints(ctx context.Context, userID string, cat Category, flags AwardFlags) (PointsBreakdown, error) {
	if _, err := s.rules.PointsFor(cat); err != nil {
		return PointsBreakdown{}, err
	}
	now := s.now()
	var out PointsBreakdown
	err := s.store.WithinTx(ctx, func(r Repos) error {
		stats, err := loadStatsForUpdate(ctx, r, s.rules, userID, now)
		if err != nil {
			return err
		}
		b, err := s.award(ctx, r, stats, "", cat, flags, now)
		if err != nil {
			return err
		}
		if err := r.Stats.Save(ctx, stats); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (s *PointsService) pointsToday(ctx context.Context, r Repos, userID string, now time.Time) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidUser
	}
	return r.Ledger.SumPositiveSince(ctx, userID, s.rules.StartOfDay(now).UnixMilli())
}

// GetPointsToday 今日获得的正向积分，纯流水查询
func (s *PointsService) GetPointsToday(ctx context.Context, userID string) (int64, error) {
	return s.pointsToday(ctx, s.store.Repos(), userID, s.now())
}

// AdjustPoints 人工调整（奖励/退款/管理员调整），同样经由流水
func (s *PointsService) AdjustPoints(ctx context.Context, req AdjustRequest) (*schema.PointTransaction, error) {
	if req.UserID == "" {
		return nil, ErrInvalidUser
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("调整额不能为 0: %w", ErrInvalidAmount)
	}
	switch req.Type {
	case "":
		req.Type = schema.PointTxAdminAdjustment
	case schema.PointTxBonus, schema.PointTxRefund, schema.PointTxAdminAdjustment:
	default:
		return nil, fmt.Errorf("不支持的流水类型 %q: %w", req.Type, ErrInvalidAmount)
	}

	now := s.now()
	var out *schema.PointTransaction
	err := s.store.WithinTx(ctx, func(r Repos) error {
		stats, err := loadStatsForUpdate(ctx, r, s.rules, req.UserID, now)
		if err != nil {
			return err
		}
		if stats.TotalPoints+req.Amount < 0 {
			return fmt.Errorf("调整后积分为负 (当前 %d): %w", stats.TotalPoints, ErrInvalidAmount)
		}
		tx := &schema.PointTransaction{
			TxID:      uuid.NewString(),
			UserID:    req.UserID,
			Amount:    req.Amount,
			Type:      req.Type,
			Metadata:  datatypes.NewJSONType(schema.PointsMetadata{Reason: req.Reason}),
			Timestamp: now.UnixMilli(),
		}
		if err := r.Ledger.Append(ctx, tx); err != nil {
			return err
		}
		stats.TotalPoints += req.Amount
		if err := r.Stats.Save(ctx, stats); err != nil {
			return err
		}
		out = tx
		return nil
	})
	return out, err
}

// VerifyLedger 核对流水之和与 TotalPoints，两次读取在同一事务快照内
func (s *PointsService) VerifyLedger(ctx context.Context, userID string) (LedgerReport, error) {
	now := s.now()
	var report LedgerReport
	err := s.store.WithinTx(ctx, func(r Repos) error {
		stats, err := readStats(ctx, r, s.rules, userID, now)
		if err != nil {
			return err
		}
		sum, err := r.Ledger.SumByUser(ctx, userID)
		if err != nil {
			return err
		}
		report = LedgerReport{
			UserID:      userID,
			TotalPoints: stats.TotalPoints,
			LedgerSum:   sum,
			Consistent:  sum == stats.TotalPoints,
		}
		return nil
	})
	return report, err
}

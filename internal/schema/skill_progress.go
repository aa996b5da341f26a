package schema

import "time"

// SkillProgress 用户在某棵技能树上的进度
// 数据量级：用户数 × 技能树数
type SkillProgress struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:uniq_user_skill,priority:1"`
	SkillTree  string    `gorm:"size:32;not null;uniqueIndex:uniq_user_skill,priority:2"`
	XP         int64     `gorm:"column:xp;not null;default:0"`
	Level      int       `gorm:"not null;default:0"` // 0 = 未解锁
	LastActive int64     `gorm:"index"`              // Unix ms
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (SkillProgress) TableName() string {
	return "skill_progress"
}

// NewSkillProgress 创建未解锁的技能树进度
func NewSkillProgress(userID, tree string) *SkillProgress {
	return &SkillProgress{UserID: userID, SkillTree: tree}
}

// AddXP 增加经验并按固定每级经验重算等级，返回跨过的等级数。
// 技能树等级 = min(floor(xp / xpPerLevel) + 1, maxLevel)
func (p *SkillProgress) AddXP(amount, xpPerLevel int64, maxLevel int, now time.Time) int {
	if amount < 0 {
		amount = 0
	}
	before := SkillLevelForXP(p.XP, xpPerLevel, maxLevel)
	p.XP += amount
	p.Level = SkillLevelForXP(p.XP, xpPerLevel, maxLevel)
	p.LastActive = now.UnixMilli()
	return p.Level - before
}

// SkillLevelForXP 技能树的平坦升级曲线
func SkillLevelForXP(xp, xpPerLevel int64, maxLevel int) int {
	if xpPerLevel <= 0 {
		return 1
	}
	if xp < 0 {
		xp = 0
	}
	level := int(xp/xpPerLevel) + 1
	if maxLevel > 0 && level > maxLevel {
		level = maxLevel
	}
	return level
}

package service

// LevelPolicy 全局等级曲线（可替换）
type LevelPolicy interface {
	LevelFromXP(totalXP int64) int
	CumulativeXP(level int) int64
	MaxLevel() int
}

// DefaultLevelPolicy 默认曲线：升到 L+1 级需要累计 sum(i*Step, i=1..L)
type DefaultLevelPolicy struct {
	Step int64
	Max  int
}

// LevelFromXP 根据累计经验计算等级，单调不减且不超过上限
func (p DefaultLevelPolicy) LevelFromXP(totalXP int64) int {
	level := 1
	var required int64
	for level < p.Max {
		required += int64(level) * p.Step
		if totalXP < required {
			break
		}
		level++
	}
	return level
}

// CumulativeXP 到达 level 级所需的累计经验
func (p DefaultLevelPolicy) CumulativeXP(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return p.Step * n * (n + 1) / 2
}

// MaxLevel 等级上限
func (p DefaultLevelPolicy) MaxLevel() int {
	return p.Max
}

// LevelInfo 全局等级进度
type LevelInfo struct {
	CurrentLevel       int     `json:"current_level"`
	CurrentXP          int64   `json:"current_xp"`
	XPForNextLevel     int64   `json:"xp_for_next_level"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// levelInfo 纯计算，不读库
func levelInfo(p LevelPolicy, totalXP int64) LevelInfo {
	level := p.LevelFromXP(totalXP)
	info := LevelInfo{CurrentLevel: level, CurrentXP: totalXP}
	if level >= p.MaxLevel() {
		info.XPForNextLevel = p.CumulativeXP(level)
		info.ProgressPercentage = 100
		return info
	}

	cur := p.CumulativeXP(level)
	next := p.CumulativeXP(level + 1)
	info.XPForNextLevel = next
	pct := float64(totalXP-cur) / float64(next-cur) * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	info.ProgressPercentage = pct
	return info
}

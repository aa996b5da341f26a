package schema

import (
	"testing"
	"time"
)

func TestNewUserGameStatsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewUserGameStats("u1", 100, now)
	if s.Level != 1 || s.CurrentStreak != 0 || s.CurrentStamina != 100 || s.MaxStamina != 100 {
		t.Fatalf("defaults = %+v", s)
	}
	if s.LastStaminaUpdate != now.UnixMilli() {
		t.Fatalf("LastStaminaUpdate = %d, want %d", s.LastStaminaUpdate, now.UnixMilli())
	}
}

func TestApplyStreakKeepsLongest(t *testing.T) {
	s := &UserGameStats{LongestStreak: 5}
	s.ApplyStreak(3)
	if s.CurrentStreak != 3 || s.LongestStreak != 5 {
		t.Fatalf("got current=%d longest=%d", s.CurrentStreak, s.LongestStreak)
	}
	s.ApplyStreak(6)
	if s.LongestStreak != 6 {
		t.Fatalf("longest=%d, want 6", s.LongestStreak)
	}
	s.ApplyStreak(-1)
	if s.CurrentStreak != 0 || s.LongestStreak != 6 {
		t.Fatalf("negative streak not clamped: %+v", s)
	}
}

func TestSkillLevelForXP(t *testing.T) {
	cases := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{4500, 5},
		{9999, 10},
		{50000, 10}, // 封顶
	}
	for _, tc := range cases {
		if got := SkillLevelForXP(tc.xp, 1000, 10); got != tc.want {
			t.Errorf("SkillLevelForXP(%d) = %d, want %d", tc.xp, got, tc.want)
		}
	}
}

func TestSkillProgressAddXPCountsCrossedThresholds(t *testing.T) {
	now := time.Now()
	p := NewSkillProgress("u1", "culinary")
	if p.Level != 0 {
		t.Fatalf("new tree should be locked, level=%d", p.Level)
	}

	if crossed := p.AddXP(500, 1000, 10, now); crossed != 0 || p.Level != 1 {
		t.Fatalf("crossed=%d level=%d, want 0/1", crossed, p.Level)
	}
	if crossed := p.AddXP(2600, 1000, 10, now); crossed != 3 || p.Level != 4 {
		t.Fatalf("crossed=%d level=%d, want 3/4", crossed, p.Level)
	}
	if crossed := p.AddXP(100000, 1000, 10, now); p.Level != 10 || crossed != 6 {
		t.Fatalf("crossed=%d level=%d, want 6/10", crossed, p.Level)
	}
	if p.LastActive != now.UnixMilli() {
		t.Fatalf("LastActive not set")
	}
}

package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/pkg/config"
	"github.com/yuqie6/ChoreQuest/internal/schema"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

func TestRulesFromConfigMapsGameSection(t *testing.T) {
	cfg := config.Default()
	cfg.App.Timezone = "UTC"
	cfg.Game.Points["quick"] = 12
	cfg.Game.Bonuses.SpeedWindowMin = 45
	cfg.Game.Streaks.Milestones = []int{30, 3}
	cfg.Game.Stamina.Tiers = []config.StaminaTierConfig{{Level: 20, Max: 140}, {Level: 5, Max: 110}}

	rules, err := RulesFromConfig(cfg)
	if err != nil {
		t.Fatalf("RulesFromConfig error: %v", err)
	}
	if rules.Points[service.CategoryQuick] != 12 {
		t.Fatalf("quick=%d, want 12", rules.Points[service.CategoryQuick])
	}
	if rules.SpeedWindow != 45*time.Minute {
		t.Fatalf("speed window=%v", rules.SpeedWindow)
	}
	if rules.Location != time.UTC {
		t.Fatalf("location=%v", rules.Location)
	}
	if rules.Streak.Milestones[0] != 3 || rules.Stamina.Tiers[0].Level != 5 {
		t.Fatalf("ordered fields not sorted: %+v %+v", rules.Streak.Milestones, rules.Stamina.Tiers)
	}
	if rules.MaxStaminaFor(20) != 140 {
		t.Fatalf("max stamina at 20=%d, want 140", rules.MaxStaminaFor(20))
	}
}

func TestRulesFromConfigRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Game.StaminaCosts = map[string]int{"quick": 5}
	if _, err := RulesFromConfig(cfg); err == nil {
		t.Fatalf("expected error for category without stamina cost")
	}

	cfg = config.Default()
	cfg.App.Timezone = "Mars/Olympus"
	if _, err := RulesFromConfig(cfg); err == nil {
		t.Fatalf("expected error for bad timezone")
	}
}

func TestNewCoreWithConfigWiresEngine(t *testing.T) {
	cfg := config.Default()
	cfg.App.Timezone = "UTC"
	cfg.Storage.DBPath = ":memory:"

	c, err := NewCoreWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewCoreWithConfig error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := c.RequireWritable(); err != nil {
		t.Fatalf("RequireWritable error: %v", err)
	}

	res, err := c.Engine.Claim(context.Background(), "u1", "t1", service.CategoryStandard)
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if !res.Success || res.Remaining != 90 {
		t.Fatalf("claim=%+v", res)
	}
}

func TestRunAtRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	after := func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		runAt(ctx, func() time.Time { return time.Now().Add(-time.Minute) }, after, func() {
			calls++
			if calls == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runAt did not stop after cancel")
	}
	if calls < 3 {
		t.Fatalf("calls=%d, want >= 3", calls)
	}
	for _, w := range waits {
		if w != 0 {
			t.Fatalf("past deadline should clamp wait to 0, got %v", w)
		}
	}
}

func TestSweepWithRetryResetsIdleStreaks(t *testing.T) {
	cfg := config.Default()
	cfg.App.Timezone = "UTC"
	cfg.Storage.DBPath = ":memory:"
	c, err := NewCoreWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewCoreWithConfig error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	repo := c.Store.Repos().Stats
	old := time.Now().Add(-5 * 24 * time.Hour)
	s, err := repo.GetOrCreate(ctx, schema.NewUserGameStats("idle", 100, old))
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	s.ApplyStreak(6)
	s.LastActiveAt = old.UnixMilli()
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	sweepWithRetry(ctx, c.Engine)
	sweepWithRetry(ctx, nil)

	got, err := repo.Get(ctx, "idle")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.CurrentStreak != 0 || got.LongestStreak != 6 {
		t.Fatalf("streak=%d longest=%d, want 0/6", got.CurrentStreak, got.LongestStreak)
	}
}

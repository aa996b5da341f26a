package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/pkg/retry"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

// StartAutoSweep 按 streaks.reset_hour 每日清扫断签用户；未启用时直接返回
func (c *Core) StartAutoSweep(ctx context.Context) {
	if c == nil || c.Engine == nil || !c.Cfg.Game.Streaks.AutoSweep {
		return
	}
	slog.Info("连胜自动清扫已启用", "next_sweep_at", c.Engine.NextSweepAt().Format(time.RFC3339))
	go runAt(ctx, c.Engine.NextSweepAt, time.After, func() { sweepWithRetry(ctx, c.Engine) })
}

// runAt 在 next() 给出的时间点执行 fn，执行完再取下一个时间点
func runAt(ctx context.Context, next func() time.Time, after func(time.Duration) <-chan time.Time, fn func()) {
	for {
		wait := time.Until(next())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-after(wait):
			fn()
		}
	}
}

// sweepWithRetry 带重试的连胜清扫
func sweepWithRetry(ctx context.Context, engine *service.GameEngine) {
	if engine == nil {
		return
	}
	opts := retry.DefaultOptions()
	opts.Classifier = service.IsRetryable

	var n int64
	err := retry.Do(ctx, func() error {
		var err error
		n, err = engine.RunDailyStreakSweep(ctx)
		return err
	}, opts)
	if err != nil {
		slog.Error("连胜清扫失败", "error", err)
		return
	}
	slog.Info("连胜清扫完成", "reset", n)
}

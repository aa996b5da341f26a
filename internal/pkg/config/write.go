package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath 可执行文件旁的 config/config.yaml
func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// WriteFile 将配置写成 YAML，键名与 Load 读取的一致
func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	g := cfg.Game
	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"log_level": cfg.App.LogLevel,
			"log_path":  cfg.App.LogPath,
			"timezone":  cfg.App.Timezone,
		},
		"storage": map[string]any{
			"db_path": cfg.Storage.DBPath,
		},
		"server": map[string]any{
			"addr":              cfg.Server.Addr,
			"read_timeout_sec":  cfg.Server.ReadTimeoutSec,
			"write_timeout_sec": cfg.Server.WriteTimeoutSec,
			"retry_attempts":    cfg.Server.RetryAttempts,
			"retry_initial_ms":  cfg.Server.RetryInitialMs,
		},
		"telemetry": map[string]any{
			"metrics_enabled": cfg.Telemetry.MetricsEnabled,
			"tracing_enabled": cfg.Telemetry.TracingEnabled,
			"otlp_endpoint":   cfg.Telemetry.OTLPEndpoint,
		},
		"game": map[string]any{
			"points":        g.Points,
			"stamina_costs": g.StaminaCosts,
			"bonuses": map[string]any{
				"first_daily":      g.Bonuses.FirstDaily,
				"speed":            g.Bonuses.Speed,
				"speed_window_min": g.Bonuses.SpeedWindowMin,
			},
			"stamina": map[string]any{
				"base":           g.Stamina.Base,
				"regen_per_hour": g.Stamina.RegenPerHour,
				"tiers":          g.Stamina.Tiers,
			},
			"streaks": map[string]any{
				"reset_hour":       g.Streaks.ResetHour,
				"milestones":       g.Streaks.Milestones,
				"bonus_step":       g.Streaks.BonusStep,
				"max_multiplier":   g.Streaks.MaxMultiplier,
				"min_days":         g.Streaks.MinDays,
				"sweep_grace_days": g.Streaks.SweepGraceDays,
				"auto_sweep":       g.Streaks.AutoSweep,
			},
			"skills": map[string]any{
				"trees":        g.Skills.Trees,
				"max_level":    g.Skills.MaxLevel,
				"xp_per_level": g.Skills.XPPerLevel,
			},
			"xp": map[string]any{
				"per_point":  g.XP.PerPoint,
				"level_step": g.XP.LevelStep,
				"max_level":  g.XP.MaxLevel,
			},
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

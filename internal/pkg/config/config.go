package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 QUEST_SERVER_ADDR
const EnvPrefix = "QUEST"

// Config 应用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Game      GameConfig      `mapstructure:"game"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	Timezone string `mapstructure:"timezone"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec"`
	RetryAttempts   int    `mapstructure:"retry_attempts"`
	RetryInitialMs  int    `mapstructure:"retry_initial_ms"`
}

// TelemetryConfig 指标与追踪
type TelemetryConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
}

// GameConfig 游戏经济规则，部署时固定
type GameConfig struct {
	Points       map[string]int64 `mapstructure:"points"`
	StaminaCosts map[string]int   `mapstructure:"stamina_costs"`
	Bonuses      BonusConfig      `mapstructure:"bonuses"`
	Stamina      StaminaConfig    `mapstructure:"stamina"`
	Streaks      StreakConfig     `mapstructure:"streaks"`
	Skills       SkillsConfig     `mapstructure:"skills"`
	XP           XPConfig         `mapstructure:"xp"`
}

// BonusConfig 平铺加成
type BonusConfig struct {
	FirstDaily     int64 `mapstructure:"first_daily"`
	Speed          int64 `mapstructure:"speed"`
	SpeedWindowMin int   `mapstructure:"speed_window_min"`
}

// StaminaTierConfig 体力上限档位
type StaminaTierConfig struct {
	Level int `mapstructure:"level" yaml:"level"`
	Max   int `mapstructure:"max" yaml:"max"`
}

// StaminaConfig 体力配置
type StaminaConfig struct {
	Base         int                 `mapstructure:"base"`
	RegenPerHour float64             `mapstructure:"regen_per_hour"`
	Tiers        []StaminaTierConfig `mapstructure:"tiers"`
}

// StreakConfig 连胜配置
type StreakConfig struct {
	ResetHour      int     `mapstructure:"reset_hour"`
	Milestones     []int   `mapstructure:"milestones"`
	BonusStep      float64 `mapstructure:"bonus_step"`
	MaxMultiplier  float64 `mapstructure:"max_multiplier"`
	MinDays        int     `mapstructure:"min_days"`
	SweepGraceDays int     `mapstructure:"sweep_grace_days"`
	AutoSweep      bool    `mapstructure:"auto_sweep"`
}

// SkillsConfig 技能树配置
type SkillsConfig struct {
	Trees      []string `mapstructure:"trees"`
	MaxLevel   int      `mapstructure:"max_level"`
	XPPerLevel int64    `mapstructure:"xp_per_level"`
}

// XPConfig 全局经验配置
type XPConfig struct {
	PerPoint  float64 `mapstructure:"per_point"`
	LevelStep int64   `mapstructure:"level_step"`
	MaxLevel  int     `mapstructure:"max_level"`
}

// newViper 设置默认值、配置文件查找路径与环境变量覆盖
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 加载配置：.env → 默认值 → 配置文件 → 环境变量
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn(".env 解析失败，忽略", "error", err)
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configPath != "" && errors.Is(err, os.ErrNotExist)) {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.Storage.DBPath = resolvePath(expandEnv(cfg.Storage.DBPath))
	cfg.Telemetry.OTLPEndpoint = expandEnv(cfg.Telemetry.OTLPEndpoint)
	return &cfg, nil
}

// Default 仅含默认值的配置
func Default() *Config {
	cfg, err := decode(newViper(""))
	if err != nil {
		panic(err)
	}
	return cfg
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "quest-server")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")
	v.SetDefault("app.timezone", "Local")

	// Storage
	v.SetDefault("storage.db_path", "./data/quest.db")

	// Server
	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("server.read_timeout_sec", 10)
	v.SetDefault("server.write_timeout_sec", 15)
	v.SetDefault("server.retry_attempts", 3)
	v.SetDefault("server.retry_initial_ms", 20)

	// Telemetry
	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")

	// Game
	v.SetDefault("game.points", map[string]any{"quick": 10, "standard": 25, "epic": 50, "legendary": 100})
	v.SetDefault("game.stamina_costs", map[string]any{"quick": 5, "standard": 10, "epic": 20, "legendary": 30})
	v.SetDefault("game.bonuses.first_daily", 5)
	v.SetDefault("game.bonuses.speed", 10)
	v.SetDefault("game.bonuses.speed_window_min", 30)
	v.SetDefault("game.stamina.base", 100)
	v.SetDefault("game.stamina.regen_per_hour", 20)
	v.SetDefault("game.stamina.tiers", []map[string]any{
		{"level": 10, "max": 120},
		{"level": 25, "max": 150},
		{"level": 50, "max": 200},
	})
	v.SetDefault("game.streaks.reset_hour", 3)
	v.SetDefault("game.streaks.milestones", []int{3, 7, 14, 30, 60, 100, 365})
	v.SetDefault("game.streaks.bonus_step", 0.1)
	v.SetDefault("game.streaks.max_multiplier", 2.0)
	v.SetDefault("game.streaks.min_days", 3)
	v.SetDefault("game.streaks.sweep_grace_days", 1)
	v.SetDefault("game.streaks.auto_sweep", true)
	v.SetDefault("game.skills.trees", []string{"culinary", "domestic", "logistics", "maintenance", "habits"})
	v.SetDefault("game.skills.max_level", 10)
	v.SetDefault("game.skills.xp_per_level", 1000)
	v.SetDefault("game.xp.per_point", 1)
	v.SetDefault("game.xp.level_step", 1000)
	v.SetDefault("game.xp.max_level", 99)
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 相对路径按可执行文件目录解析；内存库保持原样
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, ":memory:") || strings.HasPrefix(path, "file:") {
		return path
	}

	exe, err := os.Executable()
	if err != nil {
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}

// Location 解析 app.timezone
func (c *Config) Location() (*time.Location, error) {
	switch c.App.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

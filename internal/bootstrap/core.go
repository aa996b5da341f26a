package bootstrap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/eventbus"
	"github.com/yuqie6/ChoreQuest/internal/pkg/config"
	"github.com/yuqie6/ChoreQuest/internal/repository"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	CfgPath   string
	DB        *repository.Database
	LogCloser io.Closer
	Hub       *eventbus.Hub
	Store     *service.GormStore
	Engine    *service.GameEngine
}

// NewCore 加载配置、初始化日志与数据库并装配引擎
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, _ := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	c, err := NewCoreWithConfig(cfg)
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}
	c.CfgPath = cfgPath
	c.LogCloser = logCloser
	return c, nil
}

// NewCoreWithConfig 使用已加载的配置装配（不接管日志）
func NewCoreWithConfig(cfg *config.Config) (*Core, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg 不能为空")
	}
	rules, err := RulesFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}
	c.Store = service.NewStore(db.DB)
	c.Engine, err = service.NewGameEngine(c.Store, rules, service.WithEventHub(c.Hub))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// RulesFromConfig 把 game.* 配置映射为引擎规则
func RulesFromConfig(cfg *config.Config) (*service.Rules, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	g := cfg.Game

	rules := service.DefaultRules()
	rules.Location = loc

	if len(g.Points) > 0 {
		rules.Points = make(map[service.Category]int64, len(g.Points))
		for k, v := range g.Points {
			rules.Points[service.Category(k)] = v
		}
	}
	if len(g.StaminaCosts) > 0 {
		rules.StaminaCosts = make(map[service.Category]int, len(g.StaminaCosts))
		for k, v := range g.StaminaCosts {
			rules.StaminaCosts[service.Category(k)] = v
		}
	}

	rules.FirstDailyBonus = g.Bonuses.FirstDaily
	rules.SpeedBonus = g.Bonuses.Speed
	if g.Bonuses.SpeedWindowMin > 0 {
		rules.SpeedWindow = time.Duration(g.Bonuses.SpeedWindowMin) * time.Minute
	}

	if g.Stamina.Base > 0 {
		rules.Stamina.Base = g.Stamina.Base
	}
	if g.Stamina.RegenPerHour > 0 {
		rules.Stamina.RegenPerHour = g.Stamina.RegenPerHour
	}
	if g.Stamina.Tiers != nil {
		rules.Stamina.Tiers = make([]service.StaminaTier, 0, len(g.Stamina.Tiers))
		for _, t := range g.Stamina.Tiers {
			rules.Stamina.Tiers = append(rules.Stamina.Tiers, service.StaminaTier{Level: t.Level, Max: t.Max})
		}
	}

	rules.Streak.ResetHour = g.Streaks.ResetHour
	if len(g.Streaks.Milestones) > 0 {
		rules.Streak.Milestones = append([]int(nil), g.Streaks.Milestones...)
	}
	rules.Streak.BonusStep = g.Streaks.BonusStep
	if g.Streaks.MaxMultiplier > 0 {
		rules.Streak.MaxMultiplier = g.Streaks.MaxMultiplier
	}
	rules.Streak.MinDays = g.Streaks.MinDays
	rules.Streak.SweepGraceDays = g.Streaks.SweepGraceDays

	if len(g.Skills.Trees) > 0 {
		rules.Skills.Trees = append([]string(nil), g.Skills.Trees...)
	}
	if g.Skills.MaxLevel > 0 {
		rules.Skills.MaxLevel = g.Skills.MaxLevel
	}
	if g.Skills.XPPerLevel > 0 {
		rules.Skills.XPPerLevel = g.Skills.XPPerLevel
	}

	if g.XP.PerPoint > 0 {
		rules.XP.PerPoint = g.XP.PerPoint
	}
	if g.XP.LevelStep > 0 {
		rules.XP.LevelStep = g.XP.LevelStep
	}
	if g.XP.MaxLevel > 0 {
		rules.XP.MaxLevel = g.XP.MaxLevel
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("游戏规则配置无效: %w", err)
	}
	return rules, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}

// RequireWritable 迁移失败的安全模式下拒绝写操作
func (c *Core) RequireWritable() error {
	if c.DB != nil && c.DB.SafeMode {
		return fmt.Errorf("数据库处于安全模式（%s），写操作已禁用", c.DB.MigrationError)
	}
	return nil
}

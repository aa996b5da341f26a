package config

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch 监听配置文件变化，每次变化重新解析后回调 onChange。
// 日志级别在这里直接热更新；游戏规则启动后不可变，由调用方自行忽略。
func Watch(configPath string, onChange func(cfg *Config)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("无可监听的配置文件: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("配置热更新解析失败", "path", e.Name, "error", err)
			return
		}
		if cfg.App.LogLevel != "" && ParseLevel(cfg.App.LogLevel) != LogLevel() {
			SetLogLevel(cfg.App.LogLevel)
			slog.Info("日志级别已更新", "level", cfg.App.LogLevel)
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	slog.Info("开始监听配置文件", "path", v.ConfigFileUsed())
	return nil
}

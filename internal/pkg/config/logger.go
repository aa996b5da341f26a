package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// logLevel 全局日志级别，热更新时只需修改它
var logLevel = new(slog.LevelVar)

// LoggerOptions 日志选项
type LoggerOptions struct {
	Level     string
	Path      string // 为空时只输出到 stdout
	Component string
}

// ParseLevel 未识别的级别回落到 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogLevel 运行期调整日志级别
func SetLogLevel(level string) {
	logLevel.Set(ParseLevel(level))
}

// LogLevel 当前日志级别
func LogLevel() slog.Level {
	return logLevel.Level()
}

// SetupLogger 安装默认 logger；配置了 Path 时同时写入文件，返回的 Closer 用于关闭文件
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	SetLogLevel(opts.Level)

	var w io.Writer = os.Stdout
	var closer io.Closer
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)
	return closer, nil
}

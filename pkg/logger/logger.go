package logger

import (
	"PICs_Gallery/config"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const logFileName = "gallery.log"

type ctxKey struct{}

// InitLogger 根据 config.yaml 中的配置初始化全局 slog 日志记录器。
// 配置了 logger.path 时，日志会同时写入该目录下的 gallery.log。
func InitLogger() error {
	logLevel := new(slog.LevelVar)
	if err := setLogLevel(config.C.Logger.Level, logLevel); err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if config.C.Logger.Path != "" {
		if err := os.MkdirAll(config.C.Logger.Path, 0755); err != nil {
			return fmt.Errorf("无法创建日志目录: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(config.C.Logger.Path, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return fmt.Errorf("无法打开日志文件: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	slog.SetDefault(New(out, config.C.Logger.Format, logLevel))
	return nil
}

// New 按格式 (text 或 json) 构造一个 logger。
func New(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// setLogLevel 将字符串形式的日志级别转换为 slog.Level 类型
func setLogLevel(levelStr string, levelVar *slog.LevelVar) error {
	switch levelStr {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "info", "":
		levelVar.Set(slog.LevelInfo)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		return errors.New("无效的日志级别: " + levelStr)
	}
	return nil
}

// CtxWithLogger 把附带了额外字段的 logger 放进 context，
// 请求链路上的处理器 (例如带着设备ID) 可以用 FromContext 取回。
func CtxWithLogger(ctx context.Context, attrs ...slog.Attr) context.Context {
	l := FromContext(ctx)
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return context.WithValue(ctx, ctxKey{}, l.With(args...))
}

// FromContext 取出 context 中的 logger，没有时返回默认 logger。
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// Discard 返回一个丢弃所有日志的 logger，主要用于测试。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDefault 在 l 为 nil 时返回默认 logger。
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

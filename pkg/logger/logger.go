package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzap "github.com/hertz-contrib/logger/zap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"SafeWalk/config"
)

var (
	// Logger 在 Init 之前是 Nop，测试与工具进程可直接使用
	Logger   = zap.NewNop()
	logClose io.Closer
)

// Options 日志构建参数，取自 config.Cfg
type Options struct {
	Level  string
	Format string // json, text
	Output string // stdout 或文件路径
	Dev    bool
}

func optionsFromConfig() Options {
	return Options{
		Level:  config.Cfg.LoggerLevel,
		Format: config.Cfg.LoggerFormat,
		Output: config.Cfg.LoggerOutputPath,
		Dev:    config.Cfg.IsDevelopment(),
	}
}

// Init 构建全局 Logger 并接管 hertz 的 hlog 输出
func Init() {
	opts := optionsFromConfig()
	ws, closer, err := writeSyncer(opts.Output)
	if err != nil {
		panic(err)
	}

	hzLogger, level := build(opts, ws)
	hlog.SetLogger(hzLogger)
	hlog.SetLevel(hlogLevel(level))

	logClose = closer
	Logger = hzLogger.Logger().With(zap.String("service", config.Cfg.ServiceName))
	Logger.Info("Logger initialized",
		zap.Stringer("level", level),
		zap.String("format", opts.Format),
		zap.String("environment", config.Cfg.Environment),
	)
}

func build(opts Options, ws zapcore.WriteSyncer) (*hertzzap.Logger, zapcore.Level) {
	level := parseLevel(opts.Level)
	atom := zap.NewAtomicLevelAt(level)

	return hertzzap.NewLogger(
		hertzzap.WithCoreEnc(encoder(opts)),
		hertzzap.WithCoreWs(ws),
		hertzzap.WithCoreLevel(atom),
		hertzzap.WithZapOptions(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
	), level
}

func Sync() {
	_ = Logger.Sync()
	if logClose != nil {
		_ = logClose.Close()
	}
}

// For 返回带组件名的子 logger，调用时取当前全局 Logger
func For(component string) *zap.Logger {
	return Logger.Named(component)
}

func encoder(opts Options) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder

	if opts.Dev || strings.EqualFold(opts.Format, "text") {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

func writeSyncer(output string) (zapcore.WriteSyncer, io.Closer, error) {
	if output == "" || strings.EqualFold(output, "stdout") {
		return zapcore.AddSync(os.Stdout), nil, nil
	}
	if strings.EqualFold(output, "stderr") {
		return zapcore.AddSync(os.Stderr), nil, nil
	}

	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(file), file, nil
}

// parseLevel 不认识的级别按 INFO 处理
func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func hlogLevel(level zapcore.Level) hlog.Level {
	switch {
	case level <= zapcore.DebugLevel:
		return hlog.LevelDebug
	case level == zapcore.InfoLevel:
		return hlog.LevelInfo
	case level == zapcore.WarnLevel:
		return hlog.LevelWarn
	default:
		return hlog.LevelError
	}
}

// File: internal/observability/logger.go
package observability

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const (
	defaultServiceName = "pilot-cli"
	timeLayout         = "2006-01-02T15:04:05.000Z07:00"
)

// ANSI color codes for the terminal.
const (
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorBlack   = "\x1b[30m"
	colorReset   = "\x1b[0m"
)

var colorByName = map[string]string{
	"black":   colorBlack,
	"red":     colorRed,
	"green":   colorGreen,
	"yellow":  colorYellow,
	"blue":    colorBlue,
	"magenta": colorMagenta,
	"cyan":    colorCyan,
	"white":   colorWhite,
}

// Initialize builds the process-wide logger: console output on
// consoleWriter, plus a rotated JSON file when cfg.LogFile is set. Only the
// first call has any effect.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}

		cores := []zapcore.Core{zapcore.NewCore(newEncoder(cfg), consoleWriter, level)}
		if cfg.LogFile != "" {
			cores = append(cores, zapcore.NewCore(newJSONEncoder(), rotatingFile(cfg), level))
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}
		name := cfg.ServiceName
		if name == "" {
			name = defaultServiceName
		}

		logger := zap.New(zapcore.NewTee(cores...), opts...).Named(name)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// ResetForTest clears the global logger so the next Initialize takes effect.
// Tests only.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

func rotatingFile(cfg config.LoggerConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return ec
}

func newJSONEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

// newEncoder returns the console encoder for "console" and JSON otherwise.
// Console lines read: time, colored level, "component.", message, fields.
func newEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	if cfg.Format != "console" {
		return newJSONEncoder()
	}
	ec := baseEncoderConfig()
	ec.EncodeLevel = levelColorizer(cfg.Colors)
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// levelColorizer wraps level names in the configured colors. Levels without
// a known color print plain.
func levelColorizer(colors config.ColorConfig) zapcore.LevelEncoder {
	byLevel := map[zapcore.Level]string{
		zapcore.DebugLevel:  colorByName[colors.Debug],
		zapcore.InfoLevel:   colorByName[colors.Info],
		zapcore.WarnLevel:   colorByName[colors.Warn],
		zapcore.ErrorLevel:  colorByName[colors.Error],
		zapcore.DPanicLevel: colorByName[colors.DPanic],
		zapcore.PanicLevel:  colorByName[colors.Panic],
		zapcore.FatalLevel:  colorByName[colors.Fatal],
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if c := byLevel[level]; c != "" {
			enc.AppendString(c + level.CapitalString() + colorReset)
			return
		}
		enc.AppendString(level.CapitalString())
	}
}

// GetLogger returns the global logger, or a development logger when
// Initialize has not run yet.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Global logger requested before initialization; using fallback.")
	return l.Named("fallback")
}

// Sync flushes buffered entries. Call it before exiting.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !ignorableSyncError(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// ignorableSyncError matches the errors terminals and pipes return for
// fsync, which carry no lost data.
func ignorableSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.ENOTTY) ||
		errors.Is(err, syscall.EBADF)
}

// Timed logs the duration of an operation when the returned function is
// called. Typical use: defer observability.Timed(logger, "model.send")().
func Timed(logger *zap.Logger, operation string, fields ...zap.Field) func(extra ...zap.Field) {
	start := time.Now()
	return func(extra ...zap.Field) {
		all := make([]zap.Field, 0, len(fields)+len(extra)+2)
		all = append(all, zap.String("operation", operation), zap.Duration("elapsed", time.Since(start)))
		all = append(all, fields...)
		all = append(all, extra...)
		logger.Debug("Operation timing.", all...)
	}
}

// WithRun scopes a logger to a single agent run.
func WithRun(logger *zap.Logger, runID string) *zap.Logger {
	return logger.With(zap.String("run_id", runID))
}

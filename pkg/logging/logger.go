// Package logging provides the recorder's own ambient diagnostics: startup
// notices, poll failures, final-wait failures. It is entirely separate from the
// byte-exact recorder log the engine writes, and never touches it.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level selects which ambient messages reach stderr.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelNotice:
		return "notice"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger is a thin, leveled wrapper around a zap.SugaredLogger.
type Logger struct {
	level Level
	sugar *zap.SugaredLogger
}

// New builds a console-encoded logger writing to stderr at the given level.
func New(level Level) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))

	zl, err := cfg.Build()
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{level: level, sugar: zl.Sugar()}
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo, LevelNotice:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func (l *Logger) Debug(format string, args ...interface{})  { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})   { l.sugar.Infof(format, args...) }
func (l *Logger) Notice(format string, args ...interface{}) { l.sugar.Infof("[NOTICE] "+format, args...) }
func (l *Logger) Warn(format string, args ...interface{})   { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{})  { l.sugar.Errorf(format, args...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.sugar.Sync() }

// LevelFromEnv parses name's environment value into a Level, defaulting to
// LevelError (quiet by default, matching a recorder whose real output is
// the log file, not its own stderr chatter).
func LevelFromEnv(name string) Level {
	switch strings.ToLower(os.Getenv(name)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "notice":
		return LevelNotice
	case "warn", "warning":
		return LevelWarn
	default:
		return LevelError
	}
}

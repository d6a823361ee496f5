package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger. It is a no-op logger until Initialize is called,
// so packages can log from tests without setup.
var Log = zap.NewNop()

// Options configures Initialize.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stderr sends console output to stderr, keeping stdout for command output.
	Stderr bool
}

// Initialize sets up the structured logger: human-readable console output plus
// a JSON file with rotation. An empty File disables the file core.
func Initialize(opts Options) error {
	level := parseLogLevel(opts.Level)

	console := os.Stdout
	if opts.Stderr {
		console = os.Stderr
	}
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(console),
		level,
	)

	cores := []zapcore.Core{consoleCore}
	if opts.File != "" {
		jsonEncoderConfig := zap.NewProductionEncoderConfig()
		jsonEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig), fileWriter, level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	Log.Info("Logger initialized",
		zap.String("level", level.String()),
		zap.String("file", opts.File),
	)
	return nil
}

// Close flushes the logger before shutdown
func Close() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WithIdentity logs only a short prefix of an identity or raw user id.
func WithIdentity(id string) zap.Field {
	if len(id) > 5 {
		id = id[:5] + "..."
	}
	return zap.String("identity", id)
}

func WithPostID(postID uint) zap.Field {
	return zap.Uint("post_id", postID)
}

func WithWeekID(weekID string) zap.Field {
	return zap.String("week_id", weekID)
}

func WithRequestID(requestID string) zap.Field {
	return zap.String("request_id", requestID)
}

package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel defines the logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string level to LogLevel, defaulting to Info.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options configures the sinks of a ZeroLogger.
type Options struct {
	Level      LogLevel
	Console    bool   // Human readable output on stderr
	FilePath   string // JSON lines, rotated; empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Out        io.Writer // Extra raw JSON sink, used by tests
}

// ZeroLogger implements the ports.Logger interface on top of zerolog.
type ZeroLogger struct {
	zl zerolog.Logger
}

// New creates a logger writing to every sink enabled in opts.
// With no sink enabled it falls back to the console.
func New(opts Options) *ZeroLogger {
	var writers []io.Writer
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    withDefault(opts.MaxSizeMB, 50),
				MaxBackups: withDefault(opts.MaxBackups, 7),
				MaxAge:     withDefault(opts.MaxAgeDays, 30),
				Compress:   true,
			})
		}
	}
	if opts.Out != nil {
		writers = append(writers, opts.Out)
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	zl := zerolog.New(w).Level(opts.Level.zerolog()).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl}
}

// NewConsole creates a console-only logger at the given level.
func NewConsole(level LogLevel) *ZeroLogger {
	return New(Options{Level: level, Console: true})
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (l *ZeroLogger) log(level zerolog.Level, msg string, err error, fields ...map[string]interface{}) {
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}
	if err != nil {
		ev = ev.Err(err)
	}
	if len(fields) > 0 && fields[0] != nil {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// Debug logs a message at Debug level.
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(zerolog.DebugLevel, msg, nil, fields...)
}

// Info logs a message at Info level.
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(zerolog.InfoLevel, msg, nil, fields...)
}

// Warn logs a message at Warning level.
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(zerolog.WarnLevel, msg, nil, fields...)
}

// Error logs an error message at Error level.
func (l *ZeroLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.log(zerolog.ErrorLevel, msg, err, fields...)
}

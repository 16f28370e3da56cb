// Package logger provides leveled, structured logging for the disk and
// file-system services. Output can be rendered as logfmt-ish text or JSON,
// written to stderr or to a rotated file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity names accepted by SetLoggingLevel / the --log-severity flag.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// slog only defines four levels; TRACE and OFF need levels outside that
// range to sort below DEBUG and above ERROR respectively.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

// RotateConfig controls log-file rotation, mirroring lumberjack's knobs.
type RotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

func DefaultRotateConfig() RotateConfig {
	return RotateConfig{MaxFileSizeMB: 512, BackupFileCount: 10, Compress: false}
}

type loggerFactory struct {
	file            *os.File
	sysWriter       io.Writer
	level           string
	format          string
	logRotateConfig RotateConfig
	programLevel    *slog.LevelVar
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return &lumberjack.Logger{
			Filename:   f.file.Name(),
			MaxSize:    f.logRotateConfig.MaxFileSizeMB,
			MaxBackups: f.logRotateConfig.BackupFileCount,
			Compress:   f.logRotateConfig.Compress,
		}
	}
	if f.sysWriter != nil {
		return f.sysWriter
	}
	return os.Stderr
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "time"
			case slog.LevelKey:
				a.Key = "severity"
				a.Value = slog.StringValue(levelName(a.Value.Any().(slog.Level)))
			case slog.MessageKey:
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
			return a
		},
	}
	if f.format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func levelName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func severityToLevel(s string) slog.Level {
	switch s {
	case TRACE:
		return LevelTrace
	case DEBUG:
		return LevelDebug
	case INFO:
		return LevelInfo
	case WARNING:
		return LevelWarn
	case ERROR:
		return LevelError
	default:
		return LevelOff
	}
}

func setLoggingLevel(severity string, level *slog.LevelVar) {
	level.Set(severityToLevel(severity))
}

var (
	defaultLoggerFactory = &loggerFactory{
		level:           INFO,
		format:          "text",
		logRotateConfig: DefaultRotateConfig(),
	}
	defaultProgramLevel = new(slog.LevelVar)
	defaultLogger       *slog.Logger
)

func init() {
	setLoggingLevel(defaultLoggerFactory.level, defaultProgramLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer(), defaultProgramLevel, ""))
}

// SetLoggingLevel changes the minimum severity emitted by the default logger.
func SetLoggingLevel(severity string) {
	defaultLoggerFactory.level = severity
	setLoggingLevel(severity, defaultProgramLevel)
}

// SetLogFormat switches the default logger between "text" and "json" output.
func SetLogFormat(format string) {
	if format != "text" {
		format = "json"
	}
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer(), defaultProgramLevel, ""))
}

// InitLogFile redirects the default logger to a rotated file.
func InitLogFile(path string, severity string, format string, rotate RotateConfig) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defaultLoggerFactory.file = f
	defaultLoggerFactory.sysWriter = nil
	defaultLoggerFactory.level = severity
	defaultLoggerFactory.format = format
	defaultLoggerFactory.logRotateConfig = rotate
	setLoggingLevel(severity, defaultProgramLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer(), defaultProgramLevel, ""))
	return nil
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// slogLogger wraps log/slog with credential sanitising and owned writers
type slogLogger struct {
	logger    *slog.Logger
	sanitizer *Sanitizer
	closers   []io.Closer
}

// newSlogLogger builds a logger from config. Console output goes to stderr
// (or the configured Writer); file output rotates via lumberjack.
func newSlogLogger(config Config) (*slogLogger, error) {
	var writers []io.Writer
	var closers []io.Closer

	if config.Writer != nil {
		writers = append(writers, config.Writer)
	} else {
		writers = append(writers, os.Stderr)
	}

	if config.File.Enabled {
		fw, err := newFileWriter(config.File)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
		closers = append(closers, fw)
	}

	opts := &slog.HandlerOptions{Level: slogLevel(config.Level)}
	out := io.MultiWriter(writers...)

	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return &slogLogger{
		logger:    slog.New(handler),
		sanitizer: NewSanitizer(),
		closers:   closers,
	}, nil
}

// newFileWriter creates a rotating writer, creating the log directory first
func newFileWriter(config FileConfig) (io.WriteCloser, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}, nil
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, l.sanitizer.SanitizeArgs(args)...)
}

func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.sanitizer.SanitizeArgs(args)...)
}

func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, l.sanitizer.SanitizeArgs(args)...)
}

func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, l.sanitizer.SanitizeArgs(args)...)
}

// With returns a child logger that shares writers with the parent;
// only the root logger closes them
func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{
		logger:    l.logger.With(l.sanitizer.SanitizeArgs(args)...),
		sanitizer: l.sanitizer,
	}
}

func (l *slogLogger) Shutdown() error {
	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

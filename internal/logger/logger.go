package logger

import (
	"fmt"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger Logger
	initialized   bool
)

// Init initialises the global logger. Calling Init twice without an
// intervening Shutdown is an error.
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return fmt.Errorf("logger already initialized; call Shutdown() first")
	}

	l, err := newSlogLogger(config)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defaultLogger = l
	initialized = true
	return nil
}

// Get returns the global logger, or a no-op logger before Init
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()

	if !initialized {
		return &NullLogger{}
	}
	return defaultLogger
}

// With creates a child logger with bound attributes
func With(args ...any) Logger {
	return Get().With(args...)
}

// Shutdown flushes and closes the global logger
func Shutdown() error {
	mu.Lock()
	if !initialized {
		mu.Unlock()
		return nil
	}
	l := defaultLogger
	initialized = false
	mu.Unlock()

	return l.Shutdown()
}

// NullLogger discards everything
type NullLogger struct{}

func (n *NullLogger) Debug(msg string, args ...any) {}
func (n *NullLogger) Info(msg string, args ...any)  {}
func (n *NullLogger) Warn(msg string, args ...any)  {}
func (n *NullLogger) Error(msg string, args ...any) {}
func (n *NullLogger) With(args ...any) Logger       { return n }
func (n *NullLogger) Shutdown() error               { return nil }

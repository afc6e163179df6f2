// Package notify delivers user-facing status messages from the engine.
package notify

import "go.uber.org/zap"

// Notifier receives human-readable progress and failure messages.
// Delivery is fire-and-forget; implementations must not block.
type Notifier interface {
	Notify(message string)
}

// Log is a Notifier that writes messages to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Notifier backed by logger.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs the message at info level.
func (l *Log) Notify(message string) {
	l.logger.Info(message)
}

// Nop is a Notifier that discards all messages.
type Nop struct{}

// Notify discards the message.
func (Nop) Notify(string) {}

package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger returns a logger that records every entry in memory.
// Tests use it to assert on warnings and diagnostic channel output.
func NewObservedLogger(level LogLevel) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(convertToZapLevel(level))
	return NewZapAdapter(zap.New(core)), logs
}

// FilterLoggerName narrows observed logs to a named logger.
func FilterLoggerName(logs *observer.ObservedLogs, name string) *observer.ObservedLogs {
	return logs.Filter(func(e observer.LoggedEntry) bool {
		return e.LoggerName == name
	})
}

// FilterLevel narrows observed logs to one level.
func FilterLevel(logs *observer.ObservedLogs, level LogLevel) *observer.ObservedLogs {
	zl := convertToZapLevel(level)
	return logs.Filter(func(e observer.LoggedEntry) bool {
		return e.Level == zl
	})
}

// Package logging is the structured logging facade shared by every
// component. Code logs through Logger; the zap adapter backs it in the
// running service and the observer-backed logger backs it in tests.
package logging

import (
	"context"
	"io"
	"strings"
)

// LogLevel orders entry severities from DebugLevel to ErrorLevel.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a LOG_LEVEL value onto a LogLevel. "warning" is an alias
// for warn and anything unrecognized logs at info.
func ParseLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	}
	return InfoLevel
}

// Diagnostic channels are named loggers, so a sink can split them out by
// logger name.
const (
	// RouteFailedChannel receives headers that matched no registered plugin.
	RouteFailedChannel = "RouteFailed"
	// PatternFailedChannel receives distribution patterns that failed to compile.
	PatternFailedChannel = "PatternFailed"
)

// Field is one key/value pair attached to an entry.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is implemented by ZapAdapter. Error takes the error separately so
// it is always rendered under the "error" key.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	// WithContext attaches the admin request id carried by ctx, if any.
	WithContext(ctx context.Context) Logger
	// Named returns a child logger whose name is appended to the current one.
	Named(name string) Logger
}

// LogConfig selects the minimum level and the sink. A nil Output writes to
// stdout.
type LogConfig struct {
	Level  LogLevel
	Output io.Writer
}

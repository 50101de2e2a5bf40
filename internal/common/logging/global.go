package logging

import "sync"

var (
	globalMu sync.RWMutex
	global   Logger
)

// SetGlobalLogger replaces the process logger.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = logger
}

// GetGlobalLogger returns the process logger. Until InitGlobalLogger runs it
// is an info-level logger on stdout.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	logger := global
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = NewDefaultLogger()
	}
	return global
}

// Info logs on the process logger.
func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Error logs on the process logger.
func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}

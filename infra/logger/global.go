package logger

import (
	"sync"
)

var (
	globalLogger *SystemLogger
	mu           sync.Mutex
)

func defaultConfig() SystemLoggerConfig {
	return SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      LevelInfo,
		Service:       "upipay",
		Version:       "1.0.0",
		Environment:   "development",
	}
}

// InitGlobalLogger replaces the global system logger. Empty fields of config
// fall back to the defaults; a nil sink keeps logging console-only.
func InitGlobalLogger(sink Sink, config SystemLoggerConfig) *SystemLogger {
	defaults := defaultConfig()
	if config.Service == "" {
		config.Service = defaults.Service
	}
	if config.Version == "" {
		config.Version = defaults.Version
	}
	if config.Environment == "" {
		config.Environment = defaults.Environment
	}
	config.EnableSink = config.EnableSink && sink != nil

	l := NewSystemLogger(sink, config)
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		globalLogger = NewSystemLogger(nil, defaultConfig())
	}
	return globalLogger
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

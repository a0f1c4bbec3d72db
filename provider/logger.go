package provider

import (
	"github.com/mstgnz/upipay/infra/checksum"
	"github.com/mstgnz/upipay/infra/logger"
)

// Logger is the structured logger adapters report through.
// *logger.SystemLogger satisfies it.
type Logger interface {
	Debug(message string, ctx ...logger.LogContext)
	Info(message string, ctx ...logger.LogContext)
	Warn(message string, ctx ...logger.LogContext)
	Error(message string, err error, ctx ...logger.LogContext)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...logger.LogContext)        {}
func (nopLogger) Info(string, ...logger.LogContext)         {}
func (nopLogger) Warn(string, ...logger.LogContext)         {}
func (nopLogger) Error(string, error, ...logger.LogContext) {}

// NopLogger discards everything
func NopLogger() Logger {
	return nopLogger{}
}

// LogFields builds a log context tagged with the provider name
func LogFields(name Name, fields map[string]any) logger.LogContext {
	return logger.LogContext{Provider: string(name), Fields: fields}
}

// WithDefaults fills unset collaborators. Renderer stays nil when unset;
// adapters then skip QR generation.
func (o Options) WithDefaults() Options {
	if o.Environment == "" {
		o.Environment = EnvironmentProduction
	}
	if o.Logger == nil {
		o.Logger = NopLogger()
	}
	if o.Transport == nil {
		o.Transport = NewHTTPTransport(0, false, 0)
	}
	if o.Hasher == nil {
		o.Hasher = checksum.New()
	}
	return o
}

package hive

import "go.uber.org/zap"

// Logger is the structured logging interface every runtime component takes.
// Using key-value pairs keeps call sites independent of any one logging
// library; the default implementation is backed by zap, but a test can
// inject any implementation (including one that records calls).
//
//	logger.Info("service registered", "handle", h, "module", name)
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// zapLogger adapts a *zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger builds the default Logger, backed by a production zap
// configuration. Call Sync on the returned *zap.Logger during shutdown.
func NewZapLogger(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
func (l *zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }

// noopLogger discards everything; used as the zero-value default so
// components never need a nil check before logging.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}

// NoopLogger returns a Logger that discards all output.
func NoopLogger() Logger { return noopLogger{} }

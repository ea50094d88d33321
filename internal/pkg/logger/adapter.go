package logger

import (
	"vault_aggregator/internal/app/port"

	"go.uber.org/zap"
)

// slogAdapter implements port.Logger on top of the package-level logger.
type slogAdapter struct {
	fields []any
}

// NewSlogAdapter returns a port.Logger that writes through the global logger.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

func (a *slogAdapter) Info(msg string, args ...any)  { Info(msg, a.bind(args)...) }
func (a *slogAdapter) Debug(msg string, args ...any) { Debug(msg, a.bind(args)...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { Warn(msg, a.bind(args)...) }
func (a *slogAdapter) Error(msg string, args ...any) { Error(msg, a.bind(args)...) }

func (a *slogAdapter) With(args ...any) port.Logger {
	return &slogAdapter{fields: a.bind(args)}
}

func (a *slogAdapter) bind(args []any) []any {
	if len(a.fields) == 0 {
		return args
	}
	out := make([]any, 0, len(a.fields)+len(args))
	out = append(out, a.fields...)
	return append(out, args...)
}

// zapAdapter implements port.Logger over a specific zap logger.
type zapAdapter struct {
	s *zap.SugaredLogger
}

// NewZapAdapter wraps zl as a port.Logger. Tests pass zap.NewNop().
func NewZapAdapter(zl *zap.Logger) port.Logger {
	return &zapAdapter{s: zl.Sugar()}
}

func (a *zapAdapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a *zapAdapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a *zapAdapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a *zapAdapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }

func (a *zapAdapter) With(args ...any) port.Logger {
	return &zapAdapter{s: a.s.With(args...)}
}

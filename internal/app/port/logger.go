package port

// Logger is the structured logger the services write through. Args are
// alternating key/value pairs such as "vault", addr.Hex().
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// With returns a Logger that adds args to every entry, so a run id or
	// vault address is bound once per aggregation run.
	With(args ...any) Logger
}

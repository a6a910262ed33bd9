package core

// Logger is any leveled logger the app can report through.
// Implementations may forward errors to an external tracker (e.g. Rollbar).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

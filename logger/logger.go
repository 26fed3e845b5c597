// Package logger defines the logging interface used across the module
// and a zap-backed default implementation.
package logger

// Field is a structured logging key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// String builds a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Bool builds a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Err builds an error field under the conventional "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Logger is the minimal structured logging surface the engines need.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Nop returns a Logger that discards everything. It is the default when
// no logger is configured.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (nopLogger) With(...Field) Logger   { return nopLogger{} }

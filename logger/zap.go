package logger

import (
	"go.uber.org/zap"
)

type zapLogger struct {
	l *zap.Logger
}

// NewZap wraps an existing zap.Logger.
func NewZap(l *zap.Logger) Logger {
	return &zapLogger{l: l}
}

// NewDevelopment builds a human-readable console logger at debug level.
func NewDevelopment() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

// NewProduction builds a JSON logger at info level.
func NewProduction() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

func toZapFields(fields []Field) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			zf = append(zf, zap.String(f.Key, v))
		case int:
			zf = append(zf, zap.Int(f.Key, v))
		case bool:
			zf = append(zf, zap.Bool(f.Key, v))
		case error:
			zf = append(zf, zap.NamedError(f.Key, v))
		default:
			zf = append(zf, zap.Any(f.Key, v))
		}
	}
	return zf
}

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, toZapFields(fields)...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, toZapFields(fields)...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, toZapFields(fields)...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, toZapFields(fields)...) }

func (z *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{l: z.l.With(toZapFields(fields)...)}
}

// Package log provides the structured logger used across the DKG session,
// the stores and the command line tool. It wraps a zap SugaredLogger.
package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs key-value pairs at different levels.
type Logger interface {
	Debugw(msg string, keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	Fatalw(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
	Named(name string) Logger
}

type sugared struct {
	*zap.SugaredLogger
}

func (l *sugared) With(keyvals ...interface{}) Logger {
	return &sugared{l.SugaredLogger.With(keyvals...)}
}

func (l *sugared) Named(name string) Logger {
	return &sugared{l.SugaredLogger.Named(name)}
}

const (
	DebugLevel = int(zapcore.DebugLevel)
	InfoLevel  = int(zapcore.InfoLevel)
	WarnLevel  = int(zapcore.WarnLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
	FatalLevel = int(zapcore.FatalLevel)
)

// DebugEnv turns on debug logs for the default logger and the test loggers
// when set to DEBUG.
const DebugEnv = "STAKEDKG_TEST_LOGS"

// DefaultLevel is the level of the default logger.
var DefaultLevel = InfoLevel

//nolint:gochecknoinits // the default level must be known before any logger is built
func init() {
	if os.Getenv(DebugEnv) == "DEBUG" {
		DefaultLevel = DebugLevel
	}
}

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// DefaultLogger returns the process wide logger, writing JSON to stdout at
// DefaultLevel unless SetDefault was called first.
func DefaultLogger() Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(nil, DefaultLevel, true)
	})
	return defaultLogger
}

// SetDefault replaces the process wide logger.
func SetDefault(l Logger) {
	defaultOnce.Do(func() {})
	defaultLogger = l
}

// New returns a logger writing to output (stdout when nil) at the given level.
func New(output zapcore.WriteSyncer, level int, isJSON bool) Logger {
	if output == nil {
		output = os.Stdout
	}
	core := zapcore.NewCore(encoder(isJSON), output, zapcore.Level(level))
	return &sugared{zap.New(core, zap.WithCaller(true)).Sugar()}
}

func encoder(isJSON bool) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if isJSON {
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}

type ctxKey struct{}

// ToContext attaches l to ctx.
func ToContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContextOrDefault returns the logger attached with ToContext, or the
// default logger.
func FromContextOrDefault(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return DefaultLogger()
}

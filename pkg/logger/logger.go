package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"minerva/pkg/errors"
)

var global *Logger

// Logger is a sugared zap logger that mirrors error-level entries to the
// configured error tracker.
type Logger struct {
	*zap.SugaredLogger
	errorTracker errors.Tracker
}

// Init builds the global logger. Production gets JSON output; every other
// environment gets the colored console encoder for readability.
func Init(level string, env string) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	base, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	global = &Logger{SugaredLogger: base.Sugar()}
	return nil
}

// SetErrorTracker attaches the tracker that error-level entries are mirrored to
func SetErrorTracker(tracker errors.Tracker) {
	if global != nil {
		global.errorTracker = tracker
	}
}

// Get returns the global logger, lazily building a development fallback if
// Init was never called (tests, scripts).
func Get() *Logger {
	if global == nil {
		base, _ := zap.NewDevelopment()
		global = &Logger{SugaredLogger: base.Sugar()}
	}
	return global
}

// With returns a child logger carrying extra key-value fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		errorTracker:  l.errorTracker,
	}
}

func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)
	l.capture(errors.Wrapf(errors.ErrInternal, "%v", args))
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
	l.capture(fmt.Errorf(template, args...))
}

// ErrorWithContext logs an error and forwards it to the tracker with tags
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	l.SugaredLogger.Error(err)
	if l.errorTracker != nil {
		_ = l.errorTracker.CaptureError(ctx, err, tags)
	}
}

func (l *Logger) capture(err error) {
	if l.errorTracker == nil {
		return
	}
	_ = l.errorTracker.CaptureError(context.Background(), err, map[string]string{
		"component": "logger",
	})
}

// Sync flushes any buffered log entries
func Sync() error {
	if global != nil {
		return global.SugaredLogger.Sync()
	}
	return nil
}

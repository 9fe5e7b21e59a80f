// Package loggertest provides zap loggers bound to a test.
package loggertest

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// New returns a logger writing to tb
func New(tb testing.TB) *zap.SugaredLogger {
	tb.Helper()
	return zaptest.NewLogger(tb).Sugar()
}

// NewObserved returns a test logger and the logs it records at lvl or above
func NewObserved(tb testing.TB, lvl zapcore.Level) (*zap.SugaredLogger, *observer.ObservedLogs) {
	tb.Helper()
	core, logs := observer.New(lvl)
	observe := zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	})
	return zaptest.NewLogger(tb, zaptest.WrapOptions(observe)).Sugar(), logs
}

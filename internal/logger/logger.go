// Package logger builds the zap loggers used by the CLI and the server.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger at the given level. format "console" selects the
// development encoder, anything else produces JSON.
func New(level, format string) (*zap.SugaredLogger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
		lvl = parsed
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "console", "dev", "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Sugar(), nil
}

// Nop returns a logger that discards everything
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Forward logs message on l at the level used by log callbacks
// ("info", "success", "warning", "error").
func Forward(l *zap.SugaredLogger, message, level string) {
	switch level {
	case "error":
		l.Error(message)
	case "warning", "warn":
		l.Warn(message)
	case "debug":
		l.Debug(message)
	default:
		l.Info(message)
	}
}

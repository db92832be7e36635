package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a console logger on stderr at the given level (default info), with ISO8601
// timestamps under "ts".
func NewLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	lvl := strings.TrimSpace(level)
	if lvl == "" {
		lvl = "info"
	}
	l, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(l)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.CallerKey = "caller"
	zcfg.Sampling = nil
	return zcfg.Build()
}

// WithComponent attaches a component field.
func WithComponent(logger *zap.Logger, component string) *zap.Logger {
	if component == "" {
		return logger
	}
	return logger.With(zap.String("component", component))
}

// WithRun attaches the run id recorded in history.
func WithRun(logger *zap.Logger, runID string) *zap.Logger {
	if runID == "" {
		return logger
	}
	return logger.With(zap.String("run_id", runID))
}

// FieldSecret reports whether a secret is set without logging it.
func FieldSecret(key, value string) zap.Field {
	if value == "" {
		return zap.String(key, "")
	}
	return zap.String(key, "***")
}

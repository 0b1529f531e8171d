// Package obslog constructs the single zap.Logger instance injected
// through the CLI and orchestrator, mirroring the construct-once-at-root,
// pass-down pattern used for CLI logging setups in this ecosystem.
package obslog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-configured logger, switching to debug level when
// verbose is set. Callers own the returned logger and must call Sync
// before exit.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// RollbackSeverity maps a VERIFY-gate rollback target to the zap level its
// log line should use: falling all the way back to PLAN is noisier than a
// same-phase EXECUTE retry.
func RollbackSeverity(completionPct int) zapcore.Level {
	switch {
	case completionPct < 50:
		return zapcore.WarnLevel
	case completionPct < 80:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Noop returns a logger that discards everything, for tests and callers
// that have not configured one yet.
func Noop() *zap.Logger {
	return zap.NewNop()
}

// Package logging sets up the process-wide logger for a test run.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/backend-qa/api-contract-tests/framework"
)

// Options controls how the run logger is built.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Development selects zap's human-readable console encoder instead of JSON.
	Development bool
}

// New builds a zap logger from the options.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// FrameworkLogger adapts a zap logger to framework.Logger, logging at debug level.
func FrameworkLogger(logger *zap.SugaredLogger) framework.Logger {
	if logger == nil {
		return framework.NullLogger()
	}
	return framework.LoggerFunc(func(message string, args ...interface{}) {
		logger.Debugf(message, args...)
	})
}

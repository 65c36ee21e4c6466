package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// configureRuntimeLogger builds the service logger. Output goes to logFile
// as JSON; an empty path or an unwritable directory falls back to stderr.
func configureRuntimeLogger(level, logFile string) (*zap.Logger, func(), error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log-level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = lvl
	zc.Sampling = nil
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			zc.OutputPaths = []string{logFile}
			zc.ErrorOutputPaths = []string{logFile}
		}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// defaultLogFile is where logs go when stdout carries the MCP protocol
func defaultLogFile() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dlv-connect", "dlv-connect.log"), nil
}

// newLogger creates a zap-backed logr.Logger. Verbosity n enables V(n) logs.
// An empty logFile logs to stderr.
func newLogger(verbosity int, logFile string) (logr.Logger, func(), error) {
	out := zapcore.Lock(os.Stderr)
	closeFile := func() {}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return logr.Logger{}, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return logr.Logger{}, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = zapcore.AddSync(file)
		closeFile = func() { file.Close() }
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	zapLogger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), out, level))

	flush := func() {
		_ = zapLogger.Sync()
		closeFile()
	}
	return zapr.NewLogger(zapLogger), flush, nil
}

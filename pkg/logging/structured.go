package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration
type Config struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // "json" or "console"
	Output    string `yaml:"output"` // "stdout", "stderr" or a file path
	AddCaller bool   `yaml:"add_caller"`
}

// DefaultConfig logs info and above to stderr in console format.
// Stdout is left to the result line.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: "stderr"}
}

// NewLogger creates a new structured logger
func NewLogger(config Config) (*zap.Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	zapConfig.Encoding = orDefault(config.Format, "console")
	switch zapConfig.Encoding {
	case "json", "console":
	default:
		return nil, fmt.Errorf("unknown log format %q", config.Format)
	}
	if zapConfig.Encoding == "console" {
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	output := orDefault(config.Output, "stderr")
	zapConfig.OutputPaths = []string{output}
	zapConfig.ErrorOutputPaths = []string{output}
	zapConfig.DisableCaller = !config.AddCaller
	zapConfig.DisableStacktrace = true
	zapConfig.Sampling = nil

	return zapConfig.Build()
}

// ParseLevel parses a level name; the empty string means info.
func ParseLevel(level string) (zap.AtomicLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	case "", "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	case "warn", "warning":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel), nil
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel), nil
	default:
		return zap.AtomicLevel{}, fmt.Errorf("unknown log level %q", level)
	}
}

// Component returns l named after a component, or a no-op logger when l is nil.
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Environment names recognized by ConfigFromEnv.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// ConfigFromEnv builds a logger configuration from environment variables:
// LOG_LEVEL, LOG_FORMAT, LOG_ADD_SOURCE, and ENVIRONMENT.
func ConfigFromEnv() Config {
	config := DefaultConfig

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = strings.ToLower(format)
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = strings.ToLower(env)
	}
	if addSource := os.Getenv("LOG_ADD_SOURCE"); addSource != "" {
		config.AddSource = strings.ToLower(addSource) == "true"
	}

	switch config.Environment {
	case EnvDevelopment:
		config.Format = "text"
		if os.Getenv("LOG_LEVEL") == "" {
			config.Level = "debug"
		}
		config.AddSource = true
	case EnvTest:
		config.Format = "text"
		if os.Getenv("LOG_LEVEL") == "" {
			config.Level = "debug"
		}
	}

	return config
}

// DynamicLevelVar allows changing the log level at runtime.
type DynamicLevelVar struct {
	*slog.LevelVar
}

// NewDynamicLevelVar creates a dynamic level variable starting at initialLevel.
func NewDynamicLevelVar(initialLevel slog.Level) *DynamicLevelVar {
	levelVar := &slog.LevelVar{}
	levelVar.Set(initialLevel)
	return &DynamicLevelVar{LevelVar: levelVar}
}

// SetFromString sets the level from its string name. Returns false for
// unrecognized names, leaving the level unchanged.
func (d *DynamicLevelVar) SetFromString(level string) bool {
	switch strings.ToLower(level) {
	case "debug":
		d.Set(slog.LevelDebug)
	case "info":
		d.Set(slog.LevelInfo)
	case "warn", "warning":
		d.Set(slog.LevelWarn)
	case "error":
		d.Set(slog.LevelError)
	default:
		return false
	}
	return true
}

// NewLoggerWithDynamicLevel creates a logger whose level can be changed at
// runtime through the returned DynamicLevelVar.
func NewLoggerWithDynamicLevel(config Config) (*Logger, *DynamicLevelVar) {
	levelVar := NewDynamicLevelVar(parseLevel(config.Level))

	opts := &slog.HandlerOptions{
		Level:     levelVar.LevelVar,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "text" || config.Environment == EnvDevelopment {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}, levelVar
}

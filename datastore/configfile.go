package datastore

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk (YAML or JSON) form of the scheduling parameters
// and sync expressions. Handler contracts are code, not data, so they are not
// loadable from a file; compose the returned options with WithErrorHandler
// and WithConflictHandler as needed.
type FileConfig struct {
	// SyncInterval is a Go duration string, e.g. "24h" or "30m".
	SyncInterval string `json:"sync_interval,omitempty" yaml:"sync_interval,omitempty"`

	SyncMaxRecords *int `json:"sync_max_records,omitempty" yaml:"sync_max_records,omitempty"`
	SyncPageSize   *int `json:"sync_page_size,omitempty" yaml:"sync_page_size,omitempty"`

	Expressions []ExpressionConfig `json:"expressions,omitempty" yaml:"expressions,omitempty"`
}

// ExpressionConfig declares one per-model filter predicate.
type ExpressionConfig struct {
	Model  string `json:"model" yaml:"model"`
	Filter string `json:"filter" yaml:"filter"`
}

// ExpressionCompiler turns a declared filter into a SyncExpression. It is
// injected rather than imported to keep this package free of any particular
// expression engine (the syncexpr package provides one).
type ExpressionCompiler func(model, filter string) (SyncExpression, error)

// OptionsFromFile reads a YAML or JSON configuration file and returns the
// corresponding construction options. The format is detected from the file
// extension, defaulting to YAML.
func OptionsFromFile(path string, compile ExpressionCompiler) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return OptionsFromBytes(data, detectFormat(path), compile)
}

// OptionsFromBytes parses raw configuration bytes in the given format
// ("yaml" or "json") and returns the corresponding construction options.
func OptionsFromBytes(data []byte, format string, compile ExpressionCompiler) ([]Option, error) {
	var fc FileConfig

	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	return fc.Options(compile)
}

// Options converts the parsed file form into construction options.
func (fc *FileConfig) Options(compile ExpressionCompiler) ([]Option, error) {
	var opts []Option

	if fc.SyncInterval != "" {
		d, err := time.ParseDuration(fc.SyncInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid sync_interval %q: %w", fc.SyncInterval, err)
		}
		opts = append(opts, WithSyncInterval(d))
	}
	if fc.SyncMaxRecords != nil {
		opts = append(opts, WithSyncMaxRecords(*fc.SyncMaxRecords))
	}
	if fc.SyncPageSize != nil {
		opts = append(opts, WithSyncPageSize(*fc.SyncPageSize))
	}

	if len(fc.Expressions) > 0 {
		if compile == nil {
			return nil, fmt.Errorf("config declares expressions but no compiler was provided")
		}
		exprs := make([]SyncExpression, 0, len(fc.Expressions))
		for _, ec := range fc.Expressions {
			if ec.Model == "" {
				return nil, fmt.Errorf("expression is missing a model name")
			}
			expr, err := compile(ec.Model, ec.Filter)
			if err != nil {
				return nil, fmt.Errorf("failed to compile expression for model %s: %w", ec.Model, err)
			}
			exprs = append(exprs, expr)
		}
		opts = append(opts, WithSyncExpressions(exprs...))
	}

	return opts, nil
}

// detectFormat determines the file format from its extension.
func detectFormat(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return "yaml"
	}
	switch strings.ToLower(path[idx+1:]) {
	case "json":
		return "json"
	default:
		return "yaml"
	}
}

// Package config provides the configuration schema, loader, backend registry,
// and file watcher for the LumaPix photo pipeline.
package config

import (
	"fmt"
	"time"

	"github.com/lumapix/lumapix/internal/command"
	"github.com/lumapix/lumapix/internal/search"
	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the LumaPix server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration so it can be written in YAML as a string
// like "300ms" or "30s".
type Duration time.Duration

// UnmarshalYAML decodes a duration from a YAML string via [time.ParseDuration].
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"300ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a standard [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for LumaPix.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Library LibraryConfig `yaml:"library"`
	Backend BackendConfig `yaml:"backend"`
	Search  SearchConfig  `yaml:"search"`
	Parser  ParserConfig  `yaml:"parser"`
	Filters FiltersConfig `yaml:"filters"`
	Bulk    BulkConfig    `yaml:"bulk"`
	Agent   AgentConfig   `yaml:"agent"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus scrape endpoint listens
	// on (e.g., ":9464"). Leave empty to disable the metrics listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// LibraryConfig points at the photo library manifest loaded on startup.
type LibraryConfig struct {
	// Path is the YAML manifest describing the photo collection.
	Path string `yaml:"path"`
}

// BackendConfig selects and tunes the photo storage backend that bulk
// operations are executed against. The Name field is used to look up the
// constructor in the [Registry].
type BackendConfig struct {
	// Name selects the registered backend implementation (e.g., "memory").
	Name string `yaml:"name"`

	// Options holds backend-specific configuration values. Values may be
	// strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Breaker tunes the circuit breaker guarding the backend.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker that shields the photo backend.
// Zero values fall back to the breaker's built-in defaults.
type BreakerConfig struct {
	// TripAfter is the number of consecutive failures that opens the circuit.
	TripAfter int `yaml:"trip_after"`

	// Cooldown is how long the circuit stays open before probing.
	Cooldown Duration `yaml:"cooldown"`

	// ProbeBudget is the number of half-open probes that must succeed
	// before the circuit closes again.
	ProbeBudget int `yaml:"probe_budget"`
}

// SearchConfig tunes the fuzzy search engine.
type SearchConfig struct {
	// SimilarityThreshold is the minimum per-term similarity, in [0, 1],
	// for a fuzzy match to count. 0 means the engine default.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MaxResults caps how many ranked photos a search returns.
	// 0 means the engine default.
	MaxResults int `yaml:"max_results"`

	// Budget is the soft wall-clock limit for a single search.
	// 0 means the engine default.
	Budget Duration `yaml:"budget"`

	// Weights overrides per-category ranking weights, keyed by category
	// name (e.g., "semantic", "spatial"). Missing keys keep their defaults.
	Weights map[string]float64 `yaml:"weights"`
}

// ParserConfig tunes the natural-language query and command parsers.
type ParserConfig struct {
	// ClarificationThreshold is the query confidence, in [0, 1], below
	// which the parser asks for clarification. 0 means the parser default.
	ClarificationThreshold float64 `yaml:"clarification_threshold"`

	// ExecuteThreshold is the command confidence, in [0, 1], required
	// before a parsed bulk command may execute. 0 means the parser default.
	ExecuteThreshold float64 `yaml:"execute_threshold"`
}

// FiltersConfig tunes the debounced filter controller.
type FiltersConfig struct {
	// DebounceWindow is how long filter edits coalesce before a search
	// fires. 0 means the controller default.
	DebounceWindow Duration `yaml:"debounce_window"`

	// Mode is the filter combination mode, "AND" or "OR".
	// Empty means the controller default.
	Mode search.CombineMode `yaml:"mode"`

	// StateFile persists the active filter set across restarts.
	// Empty keeps filters in memory only.
	StateFile string `yaml:"state_file"`
}

// BulkConfig tunes bulk selection and execution limits.
type BulkConfig struct {
	// BatchSize is how many photos one backend batch covers. 0 means the
	// executor default.
	BatchSize int `yaml:"batch_size"`

	// MaxRetries is how many times a transiently failing photo is retried
	// within a run. 0 disables retries.
	MaxRetries int `yaml:"max_retries"`

	// ConfirmLimit is the selection size above which non-destructive
	// operations also require confirmation. 0 means the default.
	ConfirmLimit int `yaml:"confirm_limit"`

	// ConfirmLimits overrides ConfirmLimit per operation type, e.g.
	// {share: 25}. Operations not listed use the global limit.
	ConfirmLimits map[command.Type]int `yaml:"confirm_limits"`

	// SelectionLimit caps how many photos a single selection may hold.
	// 0 means the default.
	SelectionLimit int `yaml:"selection_limit"`

	// PermittedOperations restricts which operation types may run.
	// Empty permits every operation.
	PermittedOperations []command.Type `yaml:"permitted_operations"`
}

// AgentConfig controls the agent-facing tool server.
type AgentConfig struct {
	// Enabled starts the MCP stdio server when true.
	Enabled bool `yaml:"enabled"`

	// Version is reported to connecting agents. Empty means "dev".
	Version string `yaml:"version"`
}

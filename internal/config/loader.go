package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/lumapix/lumapix/internal/search"
	"gopkg.in/yaml.v3"
)

// ValidCategoryNames lists the ranking categories accepted in
// search.weights. Used by [Validate] to reject typoed keys.
var ValidCategoryNames = []string{
	string(search.CategorySemantic),
	string(search.CategorySpatial),
	string(search.CategoryTemporal),
	string(search.CategoryPeople),
	string(search.CategoryTechnical),
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Library availability
	if cfg.Library.Path == "" {
		slog.Warn("library.path is empty; the index starts out empty until photos are imported")
	}

	// Backend
	if cfg.Backend.Breaker.TripAfter < 0 {
		errs = append(errs, fmt.Errorf("backend.breaker.trip_after %d must not be negative", cfg.Backend.Breaker.TripAfter))
	}
	if cfg.Backend.Breaker.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("backend.breaker.cooldown %s must not be negative", cfg.Backend.Breaker.Cooldown.Std()))
	}
	if cfg.Backend.Breaker.ProbeBudget < 0 {
		errs = append(errs, fmt.Errorf("backend.breaker.probe_budget %d must not be negative", cfg.Backend.Breaker.ProbeBudget))
	}

	// Search
	if cfg.Search.SimilarityThreshold < 0 || cfg.Search.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("search.similarity_threshold %.2f is out of range [0, 1]", cfg.Search.SimilarityThreshold))
	}
	if cfg.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("search.max_results %d must not be negative", cfg.Search.MaxResults))
	}
	if cfg.Search.Budget < 0 {
		errs = append(errs, fmt.Errorf("search.budget %s must not be negative", cfg.Search.Budget.Std()))
	}
	for name, weight := range cfg.Search.Weights {
		if !slices.Contains(ValidCategoryNames, name) {
			errs = append(errs, fmt.Errorf("search.weights key %q is not a known category; valid keys: %v", name, ValidCategoryNames))
		}
		if weight < 0 {
			errs = append(errs, fmt.Errorf("search.weights[%q] %.2f must not be negative", name, weight))
		}
	}

	// Parser thresholds
	if cfg.Parser.ClarificationThreshold < 0 || cfg.Parser.ClarificationThreshold > 1 {
		errs = append(errs, fmt.Errorf("parser.clarification_threshold %.2f is out of range [0, 1]", cfg.Parser.ClarificationThreshold))
	}
	if cfg.Parser.ExecuteThreshold < 0 || cfg.Parser.ExecuteThreshold > 1 {
		errs = append(errs, fmt.Errorf("parser.execute_threshold %.2f is out of range [0, 1]", cfg.Parser.ExecuteThreshold))
	}

	// Filters
	if cfg.Filters.Mode != "" && !cfg.Filters.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("filters.mode %q is invalid; valid values: AND, OR", cfg.Filters.Mode))
	}
	if cfg.Filters.DebounceWindow < 0 {
		errs = append(errs, fmt.Errorf("filters.debounce_window %s must not be negative", cfg.Filters.DebounceWindow.Std()))
	}

	// Bulk limits
	if cfg.Bulk.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("bulk.batch_size %d must not be negative", cfg.Bulk.BatchSize))
	}
	if cfg.Bulk.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("bulk.max_retries %d must not be negative", cfg.Bulk.MaxRetries))
	}
	if cfg.Bulk.ConfirmLimit < 0 {
		errs = append(errs, fmt.Errorf("bulk.confirm_limit %d must not be negative", cfg.Bulk.ConfirmLimit))
	}
	if cfg.Bulk.SelectionLimit < 0 {
		errs = append(errs, fmt.Errorf("bulk.selection_limit %d must not be negative", cfg.Bulk.SelectionLimit))
	}
	if cfg.Bulk.SelectionLimit > 0 && cfg.Bulk.ConfirmLimit > cfg.Bulk.SelectionLimit {
		slog.Warn("bulk.confirm_limit exceeds bulk.selection_limit; large selections are rejected before confirmation applies",
			"confirm_limit", cfg.Bulk.ConfirmLimit,
			"selection_limit", cfg.Bulk.SelectionLimit,
		)
	}
	for op, limit := range cfg.Bulk.ConfirmLimits {
		if !op.IsValid() {
			errs = append(errs, fmt.Errorf("bulk.confirm_limits key %q is not a known operation", op))
		}
		if limit <= 0 {
			errs = append(errs, fmt.Errorf("bulk.confirm_limits[%s] %d must be positive", op, limit))
		}
	}
	seen := make(map[string]int, len(cfg.Bulk.PermittedOperations))
	for i, op := range cfg.Bulk.PermittedOperations {
		prefix := fmt.Sprintf("bulk.permitted_operations[%d]", i)
		if !op.IsValid() {
			errs = append(errs, fmt.Errorf("%s %q is not a known operation", prefix, op))
			continue
		}
		if prev, ok := seen[string(op)]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of bulk.permitted_operations[%d]", prefix, op, prev))
		}
		seen[string(op)] = i
	}

	return errors.Join(errs...)
}

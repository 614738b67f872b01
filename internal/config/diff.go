package config

import (
	"maps"

	"github.com/lumapix/lumapix/internal/command"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SearchChanged is set when any search tuning knob differs. The engine
	// has to be rebuilt to pick the new values up.
	SearchChanged bool

	// FiltersChanged is set when the debounce window or combination mode
	// differs.
	FiltersChanged bool

	// BulkChanged is set when any bulk limit or the permitted operation
	// set differs.
	BulkChanged bool
}

// Any reports whether the diff carries at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.SearchChanged || d.FiltersChanged || d.BulkChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; the library
// path and backend selection require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Search.SimilarityThreshold != new.Search.SimilarityThreshold ||
		old.Search.MaxResults != new.Search.MaxResults ||
		old.Search.Budget != new.Search.Budget ||
		!maps.Equal(old.Search.Weights, new.Search.Weights) {
		d.SearchChanged = true
	}

	if old.Filters.DebounceWindow != new.Filters.DebounceWindow ||
		old.Filters.Mode != new.Filters.Mode {
		d.FiltersChanged = true
	}

	if old.Bulk.BatchSize != new.Bulk.BatchSize ||
		old.Bulk.MaxRetries != new.Bulk.MaxRetries ||
		old.Bulk.ConfirmLimit != new.Bulk.ConfirmLimit ||
		old.Bulk.SelectionLimit != new.Bulk.SelectionLimit ||
		!maps.Equal(old.Bulk.ConfirmLimits, new.Bulk.ConfirmLimits) ||
		!sameOperations(old.Bulk.PermittedOperations, new.Bulk.PermittedOperations) {
		d.BulkChanged = true
	}

	return d
}

// sameOperations compares two permitted-operation lists ignoring order.
func sameOperations(a, b []command.Type) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[command.Type]int, len(a))
	for _, op := range a {
		set[op]++
	}
	for _, op := range b {
		set[op]--
		if set[op] < 0 {
			return false
		}
	}
	return true
}

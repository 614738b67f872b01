package config_test

import (
	"strings"
	"testing"

	"github.com/lumapix/lumapix/internal/config"
)

func TestValidate_BadLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for bad log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_ThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
search:
  similarity_threshold: 1.5
parser:
  execute_threshold: -0.1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for out-of-range thresholds, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "similarity_threshold") {
		t.Errorf("error should mention similarity_threshold, got: %v", err)
	}
	if !strings.Contains(errStr, "execute_threshold") {
		t.Errorf("error should mention execute_threshold, got: %v", err)
	}
}

func TestValidate_UnknownWeightCategory(t *testing.T) {
	t.Parallel()
	yaml := `
search:
  weights:
    semantics: 1.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown weight category, got nil")
	}
	if !strings.Contains(err.Error(), "semantics") {
		t.Errorf("error should name the bad key, got: %v", err)
	}
}

func TestValidate_BadFilterMode(t *testing.T) {
	t.Parallel()
	yaml := `
filters:
  mode: XOR
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for bad filter mode, got nil")
	}
	if !strings.Contains(err.Error(), "XOR") {
		t.Errorf("error should name the bad mode, got: %v", err)
	}
}

func TestValidate_BadConfirmLimits(t *testing.T) {
	t.Parallel()
	yaml := `
bulk:
  confirm_limits:
    teleport: 10
    share: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for bad confirm_limits, got nil")
	}
	if !strings.Contains(err.Error(), "teleport") {
		t.Errorf("error should name the unknown operation, got: %v", err)
	}
	if !strings.Contains(err.Error(), "must be positive") {
		t.Errorf("error should flag the non-positive limit, got: %v", err)
	}
}

func TestValidate_UnknownPermittedOperation(t *testing.T) {
	t.Parallel()
	yaml := `
bulk:
  permitted_operations: [tag, teleport]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown operation, got nil")
	}
	if !strings.Contains(err.Error(), "teleport") {
		t.Errorf("error should name the unknown operation, got: %v", err)
	}
}

func TestValidate_DuplicatePermittedOperation(t *testing.T) {
	t.Parallel()
	yaml := `
bulk:
  permitted_operations: [tag, rate, tag]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate operation, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_NegativeLimits(t *testing.T) {
	t.Parallel()
	yaml := `
bulk:
  batch_size: -1
  selection_limit: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for negative limits, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "batch_size") {
		t.Errorf("error should mention batch_size, got: %v", err)
	}
	if !strings.Contains(errStr, "selection_limit") {
		t.Errorf("error should mention selection_limit, got: %v", err)
	}
}

func TestValidate_EmptyConfigIsValid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a config, got nil")
	}
}

func TestValidCategoryNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidCategoryNames) == 0 {
		t.Fatal("ValidCategoryNames should not be empty")
	}
	found := false
	for _, n := range config.ValidCategoryNames {
		if n == "semantic" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidCategoryNames should contain \"semantic\"")
	}
}

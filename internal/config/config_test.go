package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studio/internal/transform"
)

func TestLoadOperationsDefaultsWhenFileMissing(t *testing.T) {
	ops, err := LoadOperations(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOperations: %v", err)
	}
	b := ops.KindBudgets()
	if got := b[transform.KindSmartCrop]; got.MaxAttempts != 20 || got.Interval != time.Second {
		t.Fatalf("smart crop budget = %+v", got)
	}
	if got := b[transform.KindTranscribe]; got.MaxAttempts != 20 || got.Interval != 5*time.Second {
		t.Fatalf("transcribe budget = %+v", got)
	}
	if ops.PersistTimeout != 10*time.Second {
		t.Fatalf("persist timeout = %s", ops.PersistTimeout)
	}
}

func TestLoadOperationsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.yaml")
	body := strings.Join([]string{
		"budgets:",
		"  transcribe:",
		"    max_attempts: 30",
		"  smart_crop:",
		"    interval: 2s",
		"persist_timeout: 3s",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STUDIO_OPS__BUDGETS__TRANSCRIBE__INTERVAL", "7s")

	ops, err := LoadOperations(path)
	if err != nil {
		t.Fatalf("LoadOperations: %v", err)
	}
	b := ops.KindBudgets()
	if got := b[transform.KindTranscribe]; got.MaxAttempts != 30 || got.Interval != 7*time.Second {
		t.Fatalf("transcribe budget = %+v", got)
	}
	if got := b[transform.KindSmartCrop]; got.MaxAttempts != 20 || got.Interval != 2*time.Second {
		t.Fatalf("smart crop budget = %+v", got)
	}
	if ops.PersistTimeout != 3*time.Second {
		t.Fatalf("persist timeout = %s", ops.PersistTimeout)
	}
}

func TestLoadOperationsRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.yaml")
	if err := os.WriteFile(path, []byte("budgets:\n  sharpen:\n    max_attempts: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadOperations(path); err == nil {
		t.Fatalf("expected error for unknown operation")
	}
}

func TestLoadOperationsCheckTimeoutBoundsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.yaml")
	body := strings.Join([]string{
		"budgets:",
		"  transcribe:",
		"    check_timeout: 2s",
		"  gen_fill:",
		"    max_attempts: 2",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ops, err := LoadOperations(path)
	if err != nil {
		t.Fatalf("LoadOperations: %v", err)
	}
	b := ops.KindBudgets()
	if got := b[transform.KindTranscribe].CheckTimeout; got != 2*time.Second {
		t.Fatalf("transcribe check timeout = %s", got)
	}
	if got := b[transform.KindGenFill].CheckTimeout; got != defaultCheckTimeout {
		t.Fatalf("gen fill check timeout = %s, want default", got)
	}
	// transcribe: 19*5s waits + 20*2s checks
	if got := ops.LongestRun(); got != 135*time.Second {
		t.Fatalf("longest run = %s, want 135s", got)
	}
}

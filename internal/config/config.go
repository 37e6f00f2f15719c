// Package config loads operation tuning (poll budgets and persistence
// settings) from a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"studio/internal/poller"
	"studio/internal/transform"
)

// EnvPrefix prefixes environment overrides, e.g.
// STUDIO_OPS__BUDGETS__TRANSCRIBE__MAX_ATTEMPTS=30.
const EnvPrefix = "STUDIO_OPS__"

const defaultCheckTimeout = 5 * time.Second

// Operations tunes how operations run.
type Operations struct {
	Budgets        map[string]poller.Budget `koanf:"budgets"`
	PersistTimeout time.Duration            `koanf:"persist_timeout"`
	SnapshotTTL    time.Duration            `koanf:"snapshot_ttl"`
}

// Defaults mirrors the latencies observed for each asynchronous kind.
func Defaults() Operations {
	return Operations{
		Budgets: map[string]poller.Budget{
			string(transform.KindSmartCrop):  {MaxAttempts: 20, Interval: time.Second, CheckTimeout: 5 * time.Second},
			string(transform.KindTranscribe): {MaxAttempts: 20, Interval: 5 * time.Second, CheckTimeout: 5 * time.Second},
		},
		PersistTimeout: 10 * time.Second,
		SnapshotTTL:    24 * time.Hour,
	}
}

// LoadOperations reads path (a missing file is not an error) and applies
// environment overrides on top of Defaults.
func LoadOperations(path string) (Operations, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Operations{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Operations{}, fmt.Errorf("config: load env: %w", err)
	}

	var loaded Operations
	if err := k.Unmarshal("", &loaded); err != nil {
		return Operations{}, fmt.Errorf("config: decode: %w", err)
	}

	ops := Defaults()
	for name, b := range loaded.Budgets {
		base := ops.Budgets[name]
		if b.MaxAttempts > 0 {
			base.MaxAttempts = b.MaxAttempts
		}
		if b.Interval > 0 {
			base.Interval = b.Interval
		}
		if b.CheckTimeout > 0 {
			base.CheckTimeout = b.CheckTimeout
		}
		if base.CheckTimeout == 0 {
			base.CheckTimeout = defaultCheckTimeout
		}
		ops.Budgets[name] = base
	}
	if loaded.PersistTimeout > 0 {
		ops.PersistTimeout = loaded.PersistTimeout
	}
	if loaded.SnapshotTTL > 0 {
		ops.SnapshotTTL = loaded.SnapshotTTL
	}
	return ops, ops.validate()
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (o Operations) validate() error {
	for name, b := range o.Budgets {
		if _, err := transform.ParseKind(name); err != nil {
			return fmt.Errorf("config: budget for %q: %w", name, err)
		}
		if b.MaxAttempts <= 0 {
			return fmt.Errorf("config: budget for %q needs max_attempts > 0", name)
		}
		if b.Interval < 0 {
			return fmt.Errorf("config: budget for %q has a negative interval", name)
		}
		if b.CheckTimeout <= 0 {
			return fmt.Errorf("config: budget for %q needs check_timeout > 0", name)
		}
	}
	return nil
}

// KindBudgets returns the budgets keyed by operation kind.
func (o Operations) KindBudgets() map[transform.Kind]poller.Budget {
	out := make(map[transform.Kind]poller.Budget, len(o.Budgets))
	for name, b := range o.Budgets {
		out[transform.Kind(name)] = b
	}
	return out
}

// LongestRun is the worst-case poll time across all budgets.
func (o Operations) LongestRun() time.Duration {
	var longest time.Duration
	for _, b := range o.Budgets {
		longest = max(longest, b.Ceiling())
	}
	return longest
}

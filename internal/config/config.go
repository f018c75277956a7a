// Package config holds the runtime configuration loaded from .lwi.kdl.
package config

import (
	"fmt"
	"time"

	lwierrors "github.com/standardbeagle/lwi/internal/errors"
	"github.com/standardbeagle/lwi/internal/types"
)

// Config is the full runtime configuration. Zero-valued fields fall back
// to defaults during validation.
type Config struct {
	Workspace Workspace
	Watch     Watch
	Exclude   []string
}

// Workspace names what to index.
type Workspace struct {
	Root     string // directory to watch; defaults to the config file's directory
	Solution string // graph descriptor path; discovered by glob when empty
}

// Watch tunes change aggregation.
type Watch struct {
	DebounceMs     int
	RetryBackoffMs int
	MaxFileSize    int64
}

// Default returns a config with every tunable at its default.
func Default() *Config {
	return &Config{
		Watch: Watch{
			DebounceMs:     int(types.DefaultDebounce / time.Millisecond),
			RetryBackoffMs: int(types.DefaultRetryBackoff / time.Millisecond),
			MaxFileSize:    types.DefaultMaxFileSize,
		},
		Exclude: []string{"bin/**", "obj/**", ".git/**"},
	}
}

// Debounce returns the quiescence window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// Backoff returns the conflict-retry pause as a duration.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Watch.RetryBackoffMs) * time.Millisecond
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Watch.DebounceMs <= 0 {
		return lwierrors.NewConfigError("watch.debounce_ms", fmt.Sprintf("%d", c.Watch.DebounceMs), fmt.Errorf("must be positive"))
	}
	if c.Watch.RetryBackoffMs <= 0 {
		return lwierrors.NewConfigError("watch.retry_backoff_ms", fmt.Sprintf("%d", c.Watch.RetryBackoffMs), fmt.Errorf("must be positive"))
	}
	if c.Watch.MaxFileSize <= 0 {
		return lwierrors.NewConfigError("watch.max_file_size", fmt.Sprintf("%d", c.Watch.MaxFileSize), fmt.Errorf("must be positive"))
	}
	return nil
}

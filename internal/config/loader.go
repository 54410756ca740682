package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the client.
// Zero values mean "unspecified" and are replaced by client defaults.
type Config struct {
	CallTimeoutSec     int      `json:"call_timeout_sec" yaml:"call_timeout_sec" toml:"call_timeout_sec"`
	WatchdogSec        int      `json:"watchdog_sec" yaml:"watchdog_sec" toml:"watchdog_sec"`
	TransactionIdleSec int      `json:"transaction_idle_sec" yaml:"transaction_idle_sec" toml:"transaction_idle_sec"`
	PipePollMS         int      `json:"pipe_poll_ms" yaml:"pipe_poll_ms" toml:"pipe_poll_ms"`
	PipeMaxWaitSec     int      `json:"pipe_max_wait_sec" yaml:"pipe_max_wait_sec" toml:"pipe_max_wait_sec"`
	MaxKeyImports      int      `json:"max_key_imports" yaml:"max_key_imports" toml:"max_key_imports"`
	ArchFilter         []string `json:"arch_filter" yaml:"arch_filter" toml:"arch_filter"`
	GroupTaxonomy      string   `json:"group_taxonomy" yaml:"group_taxonomy" toml:"group_taxonomy"`
	LogLevel           string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	ListenAddr         string   `json:"listen_addr" yaml:"listen_addr" toml:"listen_addr"`
	CORSOrigins        []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects negative durations and unknown log levels.
func (c Config) Validate() error {
	for name, v := range map[string]int{
		"call_timeout_sec":     c.CallTimeoutSec,
		"watchdog_sec":         c.WatchdogSec,
		"transaction_idle_sec": c.TransactionIdleSec,
		"pipe_poll_ms":         c.PipePollMS,
		"pipe_max_wait_sec":    c.PipeMaxWaitSec,
		"max_key_imports":      c.MaxKeyImports,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Durations derived from the second and millisecond fields.

func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

func (c Config) Watchdog() time.Duration {
	return time.Duration(c.WatchdogSec) * time.Second
}

func (c Config) TransactionIdle() time.Duration {
	return time.Duration(c.TransactionIdleSec) * time.Second
}

func (c Config) PipePoll() time.Duration {
	return time.Duration(c.PipePollMS) * time.Millisecond
}

func (c Config) PipeMaxWait() time.Duration {
	return time.Duration(c.PipeMaxWaitSec) * time.Second
}

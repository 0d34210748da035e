package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend kinds understood by the storage reader.
const (
	BackendLegacyJSON   = "legacy-json"
	BackendSQLiteGlobal = "sqlite-global"
)

// Config represents the wsprovider configuration.
type Config struct {
	Daemon   DaemonConfig    `yaml:"daemon"`
	Search   SearchConfig    `yaml:"search"`
	Launch   LaunchConfig    `yaml:"launch"`
	Watch    WatchConfig     `yaml:"watch"`
	Variants []VariantConfig `yaml:"variants"`
}

// DaemonConfig holds daemon-related settings.
type DaemonConfig struct {
	BusName         string `yaml:"bus_name"`          // Well-known D-Bus name
	IdleTimeoutSecs int    `yaml:"idle_timeout_secs"` // Exit after this long without a call (0 = never)
	LogLevel        string `yaml:"log_level"`         // debug, info, warn, error
}

// SearchConfig holds matching settings.
type SearchConfig struct {
	IncludeFiles bool `yaml:"include_files"` // Surface recently opened files, not just folders and workspaces
	MaxResults   int  `yaml:"max_results"`   // Cap on returned ids (0 = unlimited)
}

// LaunchConfig holds process launch settings.
type LaunchConfig struct {
	UnitPrefix       string `yaml:"unit_prefix"`        // Prefix of transient scope names
	ScopeTimeoutSecs int    `yaml:"scope_timeout_secs"` // Deadline for moving a launched app into its scope
	DisableScope     bool   `yaml:"disable_scope"`      // Skip the scope handoff entirely
}

// WatchConfig holds storage watcher settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`     // Reload when a storage file changes
	DebounceMs int  `yaml:"debounce_ms"` // Quiet period before a change triggers a reload
}

// VariantConfig describes one editor installation.
type VariantConfig struct {
	ID          string `yaml:"id"`           // Stable identifier, namespaces result ids
	Name        string `yaml:"name"`         // Human readable name
	DesktopID   string `yaml:"desktop_id"`   // Desktop file name, e.g. code.desktop
	Command     string `yaml:"command"`      // Launch command template
	Backend     string `yaml:"backend"`      // legacy-json or sqlite-global
	ConfigDir   string `yaml:"config_dir"`   // Editor directory below $XDG_CONFIG_HOME
	StoragePath string `yaml:"storage_path"` // Explicit storage file (overrides config_dir)
	Disabled    bool   `yaml:"disabled"`
}

// DefaultBusName is the well-known name the daemon claims on the session bus.
const DefaultBusName = "io.github.runger.WorkspaceSearchProvider"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			BusName:         DefaultBusName,
			IdleTimeoutSecs: 300,
			LogLevel:        "info",
		},
		Search: SearchConfig{
			IncludeFiles: false,
			MaxResults:   0,
		},
		Launch: LaunchConfig{
			UnitPrefix:       "app-gnome",
			ScopeTimeoutSecs: 10,
			DisableScope:     false,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 500,
		},
		Variants: DefaultVariants(),
	}
}

// DefaultVariants returns the built-in editor flavours.
func DefaultVariants() []VariantConfig {
	return []VariantConfig{
		{
			ID:        "code-oss",
			Name:      "Code - OSS",
			DesktopID: "code-oss.desktop",
			Command:   "code-oss {workspace}",
			Backend:   BackendSQLiteGlobal,
			ConfigDir: "Code - OSS",
		},
		{
			ID:        "code",
			Name:      "Visual Studio Code",
			DesktopID: "code.desktop",
			Command:   "code {workspace}",
			Backend:   BackendSQLiteGlobal,
			ConfigDir: "Code",
		},
		{
			ID:        "codium",
			Name:      "VSCodium",
			DesktopID: "codium.desktop",
			Command:   "codium {workspace}",
			Backend:   BackendSQLiteGlobal,
			ConfigDir: "VSCodium",
		},
		{
			ID:        "code-insiders",
			Name:      "Visual Studio Code - Insiders",
			DesktopID: "code-insiders.desktop",
			Command:   "code-insiders {workspace}",
			Backend:   BackendSQLiteGlobal,
			ConfigDir: "Code - Insiders",
		},
	}
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the given path.
// A missing file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil // Return defaults if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Daemon.BusName == "" {
		return errors.New("daemon.bus_name must not be empty")
	}
	if c.Daemon.IdleTimeoutSecs < 0 {
		return errors.New("daemon.idle_timeout_secs must be >= 0")
	}
	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error (got: %s)", c.Daemon.LogLevel)
	}
	if c.Search.MaxResults < 0 {
		return errors.New("search.max_results must be >= 0")
	}
	if c.Launch.ScopeTimeoutSecs < 0 {
		return errors.New("launch.scope_timeout_secs must be >= 0")
	}
	if c.Watch.DebounceMs < 0 {
		return errors.New("watch.debounce_ms must be >= 0")
	}

	seen := make(map[string]struct{}, len(c.Variants))
	for i, v := range c.Variants {
		if v.ID == "" {
			return fmt.Errorf("variants[%d].id must not be empty", i)
		}
		if strings.ContainsAny(v.ID, ":/ ") {
			return fmt.Errorf("variants[%d].id must not contain ':', '/' or spaces (got: %s)", i, v.ID)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("variants[%d].id %q is not unique", i, v.ID)
		}
		seen[v.ID] = struct{}{}

		if !isValidBackend(v.Backend) {
			return fmt.Errorf("variants[%d].backend must be %s or %s (got: %s)", i, BackendLegacyJSON, BackendSQLiteGlobal, v.Backend)
		}
		if v.ConfigDir == "" && v.StoragePath == "" {
			return fmt.Errorf("variants[%d] needs config_dir or storage_path", i)
		}
		if strings.TrimSpace(v.Command) == "" {
			return fmt.Errorf("variants[%d].command must not be empty", i)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WSPROVIDER_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Daemon.LogLevel = "debug"
		}
	}
	if v := os.Getenv("WSPROVIDER_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Daemon.LogLevel = v
		}
	}
	if v := os.Getenv("WSPROVIDER_BUS_NAME"); v != "" {
		c.Daemon.BusName = v
	}
}

// IdleTimeout returns the idle timeout as a duration. Zero disables it.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Daemon.IdleTimeoutSecs) * time.Second
}

// ScopeTimeout returns the scope handoff deadline.
func (c *Config) ScopeTimeout() time.Duration {
	if c.Launch.ScopeTimeoutSecs == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Launch.ScopeTimeoutSecs) * time.Second
}

// Debounce returns the storage watcher quiet period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// SlogLevel maps daemon.log_level onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Daemon.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func isValidBackend(backend string) bool {
	switch backend {
	case BackendLegacyJSON, BackendSQLiteGlobal:
		return true
	}
	return false
}

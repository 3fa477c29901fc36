// Package config loads and validates the filewarden configuration.
// Configuration lives in a YAML file under the XDG config directory and
// can be overridden through FILEWARDEN_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/filewarden/filewarden/pkg/warden/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// MonitoringConfig configures which directories are watched.
type MonitoringConfig struct {
	// AutoDetectPaths adds the user's Downloads, Desktop, and Documents
	// directories to the watch set when they exist.
	AutoDetectPaths bool `mapstructure:"auto_detect_paths"`

	// WatchPaths are explicitly configured directories to watch.
	WatchPaths []string `mapstructure:"watch_paths"`

	// ExcludedPaths are path prefixes never inspected.
	ExcludedPaths []string `mapstructure:"excluded_paths"`

	// SettleWindowSeconds suppresses repeated events for the same path
	// for this long after an inspection.
	SettleWindowSeconds int `mapstructure:"settle_window_seconds"`
}

// QuarantineConfig configures incident isolation.
type QuarantineConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`

	// KeepOriginal copies the file into quarantine instead of moving it.
	KeepOriginal bool `mapstructure:"keep_original"`

	RetentionDays int `mapstructure:"retention_days"`
}

// DetectionConfig configures the classification engine.
type DetectionConfig struct {
	CalculateHash bool   `mapstructure:"calculate_hash"`
	LookupOwner   bool   `mapstructure:"lookup_owner"`
	MaxFileSize   string `mapstructure:"max_file_size"`

	// SkipExtensions are never checked against magic numbers.
	SkipExtensions []string `mapstructure:"skip_extensions"`

	// QuarantineUnknown escalates UNKNOWN verdicts on files that declare
	// a known extension. Off by default; unknown formats are common and
	// flagging them all produces excessive false positives.
	QuarantineUnknown bool `mapstructure:"quarantine_unknown"`
}

// SIEMConfig configures the structured event log.
type SIEMConfig struct {
	Path       string `mapstructure:"path"`
	LogUnknown bool   `mapstructure:"log_unknown"`
	Console    bool   `mapstructure:"console"`
}

// Config represents the application configuration.
type Config struct {
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Quarantine QuarantineConfig `mapstructure:"quarantine"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	SIEM       SIEMConfig       `mapstructure:"siem"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// MaxFileSizeBytes parses the configured max scan size.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	return types.ParseSize(c.Detection.MaxFileSize)
}

// ResolveWatchPaths returns the concrete set of directories to watch:
// auto-detected user directories (when enabled and present) plus the
// configured watch paths, deduplicated.
func (c *Config) ResolveWatchPaths() []string {
	seen := make(map[string]bool)
	var paths []string

	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	if c.Monitoring.AutoDetectPaths {
		if home, err := os.UserHomeDir(); err == nil {
			for _, dir := range DefaultAutoDetectDirs {
				add(filepath.Join(home, dir))
			}
		}
	}

	for _, p := range c.Monitoring.WatchPaths {
		if expanded, err := ExpandPath(p); err == nil {
			add(expanded)
		}
	}

	return paths
}

// Load loads configuration from file and environment variables. A
// non-empty file argument names the config file to read; it must exist.
// Otherwise the config file is searched for (in order of precedence):
//   - $XDG_CONFIG_HOME/filewarden/config.yaml
//   - $HOME/.config/filewarden/config.yaml
//
// Environment variables are prefixed with FILEWARDEN_
// (e.g., FILEWARDEN_QUARANTINE_ENABLED).
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "filewarden"))
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "filewarden"))
	}

	v.SetEnvPrefix("FILEWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file in the search path is acceptable; an explicitly
		// named file is not.
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand ~ in user-supplied paths
	var err error
	if cfg.Quarantine.Path, err = ExpandPath(cfg.Quarantine.Path); err != nil {
		return nil, err
	}
	if cfg.SIEM.Path, err = ExpandPath(cfg.SIEM.Path); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values on a viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("monitoring.auto_detect_paths", true)
	v.SetDefault("monitoring.watch_paths", []string{})
	v.SetDefault("monitoring.excluded_paths", DefaultExcludedPaths)
	v.SetDefault("monitoring.settle_window_seconds", DefaultSettleWindowSeconds)

	v.SetDefault("quarantine.enabled", true)
	v.SetDefault("quarantine.path", DefaultQuarantinePath())
	v.SetDefault("quarantine.keep_original", false)
	v.SetDefault("quarantine.retention_days", DefaultRetentionDays)

	v.SetDefault("detection.calculate_hash", true)
	v.SetDefault("detection.lookup_owner", true)
	v.SetDefault("detection.max_file_size", DefaultMaxFileSize)
	v.SetDefault("detection.skip_extensions", DefaultSkipExtensions)
	v.SetDefault("detection.quarantine_unknown", false)

	v.SetDefault("siem.path", DefaultSIEMPath())
	v.SetDefault("siem.log_unknown", false)
	v.SetDefault("siem.console", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use the default log path
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"watcher":    "warn",
		"engine":     "info",
		"quarantine": "info",
	})
}

// Validate checks the configuration for inconsistencies that should stop
// startup: an unparseable max size, or quarantine enabled with an
// unwritable root. Silently disabling a configured protection would hide
// the failure from operators.
func (c *Config) Validate() error {
	if _, err := c.MaxFileSizeBytes(); err != nil {
		return fmt.Errorf("detection.max_file_size: %w", err)
	}

	if c.Quarantine.Enabled {
		if c.Quarantine.Path == "" {
			return errors.New("quarantine.enabled is true but quarantine.path is empty")
		}
		if err := ensureWritableDir(c.Quarantine.Path); err != nil {
			return fmt.Errorf("quarantine.path %q is not writable: %w", c.Quarantine.Path, err)
		}
	}

	return nil
}

// ensureWritableDir creates the directory if needed and probes it with a
// temp file.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "filewarden"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "filewarden"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	// Check if config file already exists
	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Filewarden Configuration

# Which directories to watch for new and modified files
monitoring:
  # Automatically watch the user's Downloads, Desktop, and Documents
  auto_detect_paths: true
  # Additional directories to watch
  watch_paths: []
  # Path prefixes never inspected
  excluded_paths:
    - /proc
    - /sys
    - /dev
    - /run
    - /snap
  # Seconds to suppress repeated events for a just-inspected path
  settle_window_seconds: %d

# Isolation of files whose extension does not match their content
quarantine:
  enabled: true
  path: %s
  # Copy into quarantine instead of moving (leaves the original in place)
  keep_original: false
  # Days to keep incident records before cleanup
  retention_days: %d

# Detection engine settings
detection:
  # SHA-256 hash of mismatched files, for malware-hash correlation
  calculate_hash: true
  # Resolve the owning account of mismatched files
  lookup_owner: true
  # Files larger than this are never classified
  max_file_size: %s
  # Extensions checked by declaration only (no reliable magic number)
  skip_extensions:
    - txt
  # Escalate unknown content types to quarantine (aggressive)
  quarantine_unknown: false

# Structured JSON event log for SIEM ingestion
siem:
  path: %s
  # Also record files whose content matched no known signature
  log_unknown: false
  # Echo detections to the console
  console: true

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/filewarden/filewarden.log)
  path: ""
  # Log rotation settings
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    watcher: warn
    engine: info
    quarantine: info
`, DefaultSettleWindowSeconds, DefaultQuarantinePath(), DefaultRetentionDays, DefaultMaxFileSize, DefaultSIEMPath())

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/filewarden/ for the quarantine root and
// pid file.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "filewarden")
}

// StateDir returns $XDG_STATE_HOME/filewarden/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "filewarden")
}

// DefaultQuarantinePath returns the default quarantine root.
func DefaultQuarantinePath() string {
	return filepath.Join(DataDir(), "quarantine")
}

// DefaultSIEMPath returns the default SIEM event log path.
func DefaultSIEMPath() string {
	return filepath.Join(StateDir(), "events.jsonl")
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "filewarden.pid")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/filewarden/filewarden/pkg/warden/bus"
	"github.com/filewarden/filewarden/pkg/warden/config"
	"github.com/filewarden/filewarden/pkg/warden/detect"
	"github.com/filewarden/filewarden/pkg/warden/engine"
	"github.com/filewarden/filewarden/pkg/warden/evidence"
	"github.com/filewarden/filewarden/pkg/warden/logging"
	"github.com/filewarden/filewarden/pkg/warden/quarantine"
	"github.com/filewarden/filewarden/pkg/warden/siem"
	"github.com/filewarden/filewarden/pkg/warden/types"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "filewarden",
		Short: "Detect files whose extension does not match their content",
		Long: `Filewarden watches directories for new and modified files and flags
files whose declared extension does not match their actual content type,
determined from the file's magic number. Detections are logged as
SIEM-ready JSON and can be quarantined automatically.

Examples:
  filewarden run                  # Watch configured directories
  filewarden scan ~/Downloads     # One-shot sweep of an existing tree
  filewarden incidents            # List quarantined incidents
  filewarden config show          # Show configuration`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/filewarden/config.yaml)")
	rootCmd.PersistentFlags().Bool("no-quarantine", false, "detect and log only, never relocate files")
	rootCmd.PersistentFlags().Bool("keep-original", false, "copy into quarantine instead of moving")
	rootCmd.PersistentFlags().String("max-size", "", "largest file to classify (e.g., 100M, 1G)")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "excluded path prefixes (can be specified multiple times)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("no_quarantine", rootCmd.PersistentFlags().Lookup("no-quarantine"))
	_ = viper.BindPFlag("keep_original", rootCmd.PersistentFlags().Lookup("keep-original"))
	_ = viper.BindPFlag("detection.max_file_size", rootCmd.PersistentFlags().Lookup("max-size"))
	_ = viper.BindPFlag("monitoring.excluded_paths", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		// Add config paths in order of precedence
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "filewarden"))
		}

		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "filewarden"))
		}
	}

	viper.SetEnvPrefix("FILEWARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads and flag-overrides the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	// Flag overrides
	if viper.GetBool("no_quarantine") {
		cfg.Quarantine.Enabled = false
	}
	if viper.GetBool("keep_original") {
		cfg.Quarantine.KeepOriginal = true
	}
	if s := viper.GetString("detection.max_file_size"); s != "" {
		cfg.Detection.MaxFileSize = s
	}
	if excl := viper.GetStringSlice("monitoring.excluded_paths"); len(excl) > 0 {
		cfg.Monitoring.ExcludedPaths = excl
	}

	return cfg, nil
}

// initLogging initializes the logging system from configuration.
func initLogging(cfg *config.Config) error {
	rot := logging.DefaultRotationConfig()
	if n, err := types.ParseSize(cfg.Logging.Rotation.MaxSize); err == nil && n > 0 {
		rot.MaxSize = n
	}
	if cfg.Logging.Rotation.MaxAge > 0 {
		rot.MaxAge = cfg.Logging.Rotation.MaxAge
	}
	if cfg.Logging.Rotation.MaxBackups > 0 {
		rot.MaxBackups = cfg.Logging.Rotation.MaxBackups
	}
	rot.Daily = cfg.Logging.Rotation.Daily

	logCfg := logging.Config{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		Components: cfg.Logging.Components,
		Rotation:   rot,
	}
	if getVerbose() {
		logCfg.Level = "debug"
		logCfg.ConsoleLevel = "debug"
	}
	return logging.Init(logCfg)
}

// buildEngine assembles the detection pipeline from configuration.
// The returned siem.Logger and bus must be closed by the caller.
func buildEngine(cfg *config.Config) (*engine.Engine, *siem.Logger, *bus.Bus, error) {
	maxSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("detection.max_file_size: %w", err)
	}

	sink, err := siem.New(cfg.SIEM.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening event log: %w", err)
	}

	var manager *quarantine.Manager
	if cfg.Quarantine.Enabled {
		manager, err = quarantine.New(cfg.Quarantine.Path, cfg.Quarantine.KeepOriginal)
		if err != nil {
			sink.Close()
			return nil, nil, nil, err
		}
		if err := manager.EnsureRoot(); err != nil {
			sink.Close()
			return nil, nil, nil, fmt.Errorf("creating quarantine root: %w", err)
		}
	}

	// Owner lookup capability is selected once, not branched per event.
	collector := evidence.NewCollector(
		cfg.Detection.CalculateHash,
		evidence.NewOwnerLookup(cfg.Detection.LookupOwner),
	)

	b := bus.New()

	eng := engine.New(engine.Options{
		Table:             detect.DefaultTable(),
		Collector:         collector,
		Quarantine:        manager,
		Sink:              sink,
		Bus:               b,
		MaxFileSize:       maxSize,
		HeaderBytes:       config.DefaultHeaderBytes,
		SettleWindow:      time.Duration(cfg.Monitoring.SettleWindowSeconds) * time.Second,
		ExcludedPaths:     cfg.Monitoring.ExcludedPaths,
		SkipExtensions:    cfg.Detection.SkipExtensions,
		QuarantineUnknown: cfg.Detection.QuarantineUnknown,
		LogUnknown:        cfg.SIEM.LogUnknown,
	})

	return eng, sink, b, nil
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/filewarden/filewarden/pkg/warden/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage filewarden configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/filewarden/config.yaml (if set)
  2. ~/.config/filewarden/config.yaml

Environment variables can override config file settings using the FILEWARDEN_ prefix:
  FILEWARDEN_DETECTION_MAX_FILE_SIZE=500M
  FILEWARDEN_QUARANTINE_ENABLED=false
  FILEWARDEN_MONITORING_WATCH_PATHS=/srv/uploads`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Failed to load configuration: %v", err)
		return err
	}

	// Show config file being used
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("monitoring.auto_detect_paths:  %t\n", cfg.Monitoring.AutoDetectPaths)
	fmt.Printf("monitoring.watch_paths:        %v\n", cfg.Monitoring.WatchPaths)
	fmt.Printf("monitoring.excluded_paths:     %v\n", cfg.Monitoring.ExcludedPaths)
	fmt.Printf("monitoring.settle_window_seconds: %d\n", cfg.Monitoring.SettleWindowSeconds)
	fmt.Printf("quarantine.enabled:            %t\n", cfg.Quarantine.Enabled)
	fmt.Printf("quarantine.path:               %s\n", cfg.Quarantine.Path)
	fmt.Printf("quarantine.keep_original:      %t\n", cfg.Quarantine.KeepOriginal)
	fmt.Printf("quarantine.retention_days:     %d\n", cfg.Quarantine.RetentionDays)
	fmt.Printf("detection.calculate_hash:      %t\n", cfg.Detection.CalculateHash)
	fmt.Printf("detection.lookup_owner:        %t\n", cfg.Detection.LookupOwner)
	fmt.Printf("detection.max_file_size:       %s\n", cfg.Detection.MaxFileSize)
	fmt.Printf("detection.skip_extensions:     %v\n", cfg.Detection.SkipExtensions)
	fmt.Printf("detection.quarantine_unknown:  %t\n", cfg.Detection.QuarantineUnknown)
	fmt.Printf("siem.path:                     %s\n", cfg.SIEM.Path)
	fmt.Printf("siem.log_unknown:              %t\n", cfg.SIEM.LogUnknown)
	fmt.Printf("siem.console:                  %t\n", cfg.SIEM.Console)
	fmt.Printf("logging.level:                 %s\n", cfg.Logging.Level)
	fmt.Printf("logging.path:                  %s\n", cfg.Logging.Path)

	// Show any environment overrides
	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	envVars := []string{
		"FILEWARDEN_MONITORING_AUTO_DETECT_PATHS",
		"FILEWARDEN_MONITORING_WATCH_PATHS",
		"FILEWARDEN_MONITORING_EXCLUDED_PATHS",
		"FILEWARDEN_QUARANTINE_ENABLED",
		"FILEWARDEN_QUARANTINE_PATH",
		"FILEWARDEN_QUARANTINE_KEEP_ORIGINAL",
		"FILEWARDEN_DETECTION_CALCULATE_HASH",
		"FILEWARDEN_DETECTION_LOOKUP_OWNER",
		"FILEWARDEN_DETECTION_MAX_FILE_SIZE",
		"FILEWARDEN_SIEM_PATH",
		"FILEWARDEN_LOGGING_LEVEL",
	}

	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	// Ensure config file exists
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Determine editor
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'filewarden config edit' to modify it.")
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	fmt.Println(filepath.Join(configDir, "config.yaml"))
	return nil
}

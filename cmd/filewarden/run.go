package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/filewarden/filewarden/pkg/warden/bus"
	"github.com/filewarden/filewarden/pkg/warden/config"
	"github.com/filewarden/filewarden/pkg/warden/logging"
	"github.com/filewarden/filewarden/pkg/warden/siem"
	"github.com/filewarden/filewarden/pkg/warden/types"
	"github.com/filewarden/filewarden/pkg/warden/watch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch directories and flag extension mismatches as they appear",
	Long: `Run starts the filesystem monitor. Every file created or modified under
a watched directory is read for its magic number and compared against its
declared extension. Mismatches are logged as high-severity events and,
unless quarantine is disabled, moved into the quarantine directory.

The process runs until interrupted (Ctrl-C / SIGTERM).`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceP("path", "p", nil, "directory to watch (can be specified multiple times)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("loading configuration: %v", err)
		return err
	}
	if paths, _ := cmd.Flags().GetStringSlice("path"); len(paths) > 0 {
		cfg.Monitoring.WatchPaths = paths
		cfg.Monitoring.AutoDetectPaths = false
	}
	if err := cfg.Validate(); err != nil {
		printError("invalid configuration: %v", err)
		return err
	}

	if err := initLogging(cfg); err != nil {
		printError("initializing logging: %v", err)
		return err
	}
	defer logging.Close()
	logger := logging.Get("run")

	if err := config.EnsureStateDir(); err != nil {
		printError("creating state directory: %v", err)
		return err
	}
	if err := config.EnsureDataDir(); err != nil {
		printError("creating data directory: %v", err)
		return err
	}

	// Refuse to start twice against the same state directory.
	pidPath := config.DefaultPIDPath()
	if watch.IsRunning(pidPath) {
		printError("%v", watch.ErrAlreadyRunning)
		return watch.ErrAlreadyRunning
	}
	if err := watch.WritePIDFile(pidPath); err != nil {
		printError("writing PID file: %v", err)
		return err
	}
	defer watch.RemovePIDFile(pidPath)

	roots := cfg.ResolveWatchPaths()
	if len(roots) == 0 {
		printError("no watchable directories found; set monitoring.watch_paths or pass --path")
		return fmt.Errorf("no watch paths")
	}

	eng, sink, b, err := buildEngine(cfg)
	if err != nil {
		printError("%v", err)
		return err
	}
	defer sink.Close()
	defer b.Close()

	monitor, err := watch.NewMonitor(eng, roots)
	if err != nil {
		printError("starting watcher: %v", err)
		return err
	}
	defer monitor.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = sink.Emit(siem.EventSystemStart, siem.SeverityInfo, map[string]any{
		"watch_paths": roots,
		"quarantine":  cfg.Quarantine.Enabled,
	})
	defer func() {
		_ = sink.Emit(siem.EventSystemStop, siem.SeverityInfo, nil)
	}()

	if cfg.SIEM.Console && !getQuiet() {
		sub := b.Subscribe()
		defer b.Unsubscribe(sub.ID)
		go consoleFeed(ctx, sub)
	}

	printInfo("Watching %d directories. Press Ctrl-C to stop.", len(roots))
	for _, root := range roots {
		printInfo("  %s", root)
	}
	logger.Info("monitor started", "paths", len(roots), "quarantine", cfg.Quarantine.Enabled)

	if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
		printError("monitor stopped: %v", err)
		return err
	}

	logger.Info("monitor stopped")
	printInfo("Stopped.")
	return nil
}

// consoleFeed prints detection notifications until the context ends.
func consoleFeed(ctx context.Context, sub *bus.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case note, ok := <-sub.Events:
			if !ok {
				return
			}
			switch {
			case note.Failure != "":
				fmt.Printf("MISMATCH  %s  claims .%s, is %s (%s), quarantine failed: %s\n",
					note.Path, note.ClaimedExtension, note.ActualType,
					types.FormatSize(note.Size), note.Failure)
			case note.Quarantined:
				fmt.Printf("MISMATCH  %s  claims .%s, is %s (%s), quarantined as %s\n",
					note.Path, note.ClaimedExtension, note.ActualType,
					types.FormatSize(note.Size), note.IncidentID)
			default:
				fmt.Printf("MISMATCH  %s  claims .%s, is %s (%s)\n",
					note.Path, note.ClaimedExtension, note.ActualType,
					types.FormatSize(note.Size))
			}
		}
	}
}

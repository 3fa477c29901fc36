package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/filewarden/filewarden/pkg/warden/quarantine"
	"github.com/filewarden/filewarden/pkg/warden/types"
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List quarantined incidents",
	Long: `Incidents lists the contents of the quarantine directory, newest first.
Each incident folder holds the offending file together with its
metadata.json record.`,
	RunE: runIncidentsList,
}

var incidentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the full record of one incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentsShow,
}

var incidentsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove incidents older than the retention period",
	RunE:  runIncidentsCleanup,
}

func init() {
	incidentsCmd.Flags().IntP("limit", "n", 20, "maximum number of incidents to list (0 for all)")
	incidentsCmd.Flags().Bool("json", false, "output records as JSON")
	incidentsCmd.AddCommand(incidentsShowCmd)
	incidentsCmd.AddCommand(incidentsCleanupCmd)
	rootCmd.AddCommand(incidentsCmd)
}

func openQuarantine() (*quarantine.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return quarantine.New(cfg.Quarantine.Path, cfg.Quarantine.KeepOriginal)
}

func runIncidentsList(cmd *cobra.Command, args []string) error {
	manager, err := openQuarantine()
	if err != nil {
		printError("%v", err)
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := manager.List(limit)
	if err != nil {
		if os.IsNotExist(err) {
			printInfo("No incidents.")
			return nil
		}
		printError("listing incidents: %v", err)
		return err
	}
	if len(records) == 0 {
		printInfo("No incidents.")
		return nil
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDETECTED\tFILE\tCLAIMS\tACTUAL\tSIZE")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t.%s\t%s\t%s\n",
			rec.ID,
			rec.DetectedAt.Format("2006-01-02 15:04:05"),
			rec.FileName,
			rec.ClaimedExtension,
			rec.ActualType,
			types.FormatSize(rec.Size),
		)
	}
	return w.Flush()
}

func runIncidentsShow(cmd *cobra.Command, args []string) error {
	manager, err := openQuarantine()
	if err != nil {
		printError("%v", err)
		return err
	}

	rec, err := manager.Get(args[0])
	if err != nil {
		printError("incident %s: %v", args[0], err)
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func runIncidentsCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("loading configuration: %v", err)
		return err
	}

	manager, err := quarantine.New(cfg.Quarantine.Path, cfg.Quarantine.KeepOriginal)
	if err != nil {
		printError("%v", err)
		return err
	}

	if err := manager.Cleanup(cfg.Quarantine.RetentionDays); err != nil {
		printError("cleanup: %v", err)
		return err
	}
	printInfo("Removed incidents older than %d days.", cfg.Quarantine.RetentionDays)
	return nil
}

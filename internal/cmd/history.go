package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/dirstat/internal/config"
	"github.com/harrison/dirstat/internal/filelock"
	"github.com/harrison/dirstat/internal/history"
	"github.com/harrison/dirstat/internal/models"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the history database.

Without flags the most recent runs are listed. --run shows one run with
its entries. --export writes the selected runs as JSON.

Examples:
  dirstat history
  dirstat history --limit 5
  dirstat history --run 2f1c...
  dirstat history --export runs.json`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().Int("limit", 10, "Number of runs to list (0 = all)")
	cmd.Flags().String("run", "", "Show a single run with its entries")
	cmd.Flags().String("export", "", "Write the selected runs to a JSON file")
	cmd.Flags().String("db-path", "", "History database (default: from config)")
	cmd.Flags().String("config", "", "Path to config file (default: .dirstat/config.yaml)")

	return cmd
}

func historyDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db-path"); p != "" {
		return p, nil
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("failed to locate config: %w", err)
		}
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return "", err
	}
	if cfg.History.DBPath == "" {
		return config.GetHistoryDBPath()
	}
	return cfg.History.DBPath, nil
}

func historyCommand(cmd *cobra.Command, args []string) error {
	dbPath, err := historyDBPath(cmd)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "No history at %s\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	exportPath, _ := cmd.Flags().GetString("export")

	var runs []*history.Run
	if runID != "" {
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		runs = []*history.Run{run}
	} else {
		runs, err = store.RecentRuns(ctx, limit)
		if err != nil {
			return err
		}
	}

	if exportPath != "" {
		if runID == "" {
			for _, run := range runs {
				if run.EntryList, err = store.EntriesForRun(ctx, run.ID); err != nil {
					return err
				}
			}
		}
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode runs: %w", err)
		}
		if err := filelock.LockAndWrite(exportPath, data); err != nil {
			return fmt.Errorf("failed to export runs: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d run(s) to %s\n", len(runs), exportPath)
		return nil
	}

	if runID != "" {
		printRun(cmd.OutOrStdout(), runs[0])
		return nil
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	fmt.Fprintf(w, "%-36s  %-19s  %7s  %7s  %6s  %s\n", "RUN", "STARTED", "ENTRIES", "MATCHED", "FAILED", "DIRECTORY")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %7d  %7d  %6d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Entries, r.Matched, r.Failed, r.Root)
	}
}

func printRun(w io.Writer, r *history.Run) {
	fmt.Fprintf(w, "Run:          %s\n", r.ID)
	fmt.Fprintf(w, "Directory:    %s\n", r.Root)
	fmt.Fprintf(w, "Started:      %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration:     %s\n", r.Duration)
	fmt.Fprintf(w, "Entries:      %d (failed %d, skipped %d)\n", r.Entries, r.Failed, r.Skipped)
	fmt.Fprintf(w, "Matched:      %d\n", r.Matched)
	fmt.Fprintf(w, "Report lines: %d\n", r.ReportLines)
	if len(r.EntryList) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, e := range r.EntryList {
		outcome := fmt.Sprintf("%d matched", e.Matched)
		switch {
		case e.ErrorKind != "":
			outcome = "error " + e.ErrorKind
		case e.ConvertFailed:
			outcome = "convert failed"
		case e.Topology != models.MetadataPlusFilter.String():
			outcome = fmt.Sprintf("%d report lines", e.ReportLines)
		}
		fmt.Fprintf(w, "  %-30s %-10s %-8s %s\n", e.Name, e.Kind, e.Topology, outcome)
	}
}

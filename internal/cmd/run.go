package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/dirstat/internal/config"
	"github.com/harrison/dirstat/internal/display"
	"github.com/harrison/dirstat/internal/filelock"
	"github.com/harrison/dirstat/internal/fileutil"
	"github.com/harrison/dirstat/internal/history"
	"github.com/harrison/dirstat/internal/logger"
	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/pipeline"
	"github.com/harrison/dirstat/internal/report"
	"github.com/harrison/dirstat/internal/walker"
)

// executable resolves the binary workers are started from
var executable = os.Executable

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <directory>",
		Short: "Walk a directory and write its statistics",
		Long: `Walk a directory and run one pipeline per entry.

For every entry a metadata report <report-dir>/<name>_stat.txt is written.
Bitmap files are converted to grayscale in place. Other regular files are
streamed through the filter, which counts the correct sentences containing
the pattern character. One line per entry and the total are written to the
summary file.

The built-in filter only counts lines that are whole sentences: a capital
first letter and a final '.', '!' or '?'. Other lines are never counted.
The summary file, report directory, log directory and history database are
skipped when they lie inside the walked directory.

Configuration is loaded from .dirstat/config.yaml (or $DIRSTAT_HOME/config.yaml)
if present. DIRSTAT_* environment variables override the file and CLI flags
override both.

Examples:
  dirstat run ./data --pattern a
  dirstat run ./data --pattern a --summary stats.txt --report-dir ./reports
  dirstat run ./data --pattern e --filter ./count.sh --filter-timeout 30s
  dirstat run ./data --pattern a --max-concurrency 4 --exclude '*.tmp'
  dirstat run ./data --pattern a --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .dirstat/config.yaml)")
	cmd.Flags().String("summary", "", "Summary file, truncated at the start of the run")
	cmd.Flags().String("report-dir", "", "Directory for per-entry reports")
	cmd.Flags().StringP("pattern", "p", "", "Character the sentence filter looks for")
	cmd.Flags().String("filter", "", "Filter executable (default: built-in sentence filter)")
	cmd.Flags().Duration("filter-timeout", 0, "Maximum wait for a filter result (0 = unbounded)")
	cmd.Flags().Int("max-concurrency", 0, "Entry pipelines run at once")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns of entry names to skip (repeatable)")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().Bool("verbose", false, "Log every entry and worker")
	cmd.Flags().Bool("dry-run", false, "List entries and their pipelines without running them")
	cmd.Flags().Bool("history", true, "Record the run in the history database")

	return cmd
}

// loadRunConfig resolves file, environment and flags into a validated Config.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config: %w", err)
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	var overrides config.FlagOverrides
	if flags.Changed("summary") {
		v, _ := flags.GetString("summary")
		overrides.SummaryFile = &v
	}
	if flags.Changed("report-dir") {
		v, _ := flags.GetString("report-dir")
		overrides.ReportDir = &v
	}
	if flags.Changed("pattern") {
		v, _ := flags.GetString("pattern")
		overrides.Pattern = &v
	}
	if flags.Changed("filter") {
		v, _ := flags.GetString("filter")
		overrides.FilterCommand = &v
	}
	if flags.Changed("filter-timeout") {
		v, _ := flags.GetDuration("filter-timeout")
		overrides.FilterTimeout = &v
	}
	if flags.Changed("max-concurrency") {
		v, _ := flags.GetInt("max-concurrency")
		overrides.MaxConcurrency = &v
	}
	if flags.Changed("exclude") {
		overrides.Exclude, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		overrides.LogDir = &v
	}
	if flags.Changed("verbose") {
		v, _ := flags.GetBool("verbose")
		overrides.Verbose = &v
	}
	if flags.Changed("dry-run") {
		v, _ := flags.GetBool("dry-run")
		overrides.DryRun = &v
	}
	if flags.Changed("history") {
		v, _ := flags.GetBool("history")
		overrides.History = &v
	}
	cfg.MergeWithFlags(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := fileutil.ValidatePatterns(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	root := args[0]
	out := cmd.OutOrStdout()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	// The summary file is only created once the directory is known to be readable.
	if err := checkReadableDir(root); err != nil {
		return err
	}

	if cfg.DryRun {
		return dryRun(out, root, cfg)
	}

	consoleLog := logger.NewConsoleLogger(out, cfg.LogLevel)
	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	runLog := logger.MultiLogger{consoleLog, fileLog}

	if err := os.MkdirAll(cfg.ReportDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	orchOpts, err := orchestratorOptions(cfg)
	if err != nil {
		return err
	}

	sink, err := filelock.CreateSink(cfg.SummaryFile)
	if err != nil {
		return fmt.Errorf("failed to open summary file: %w", err)
	}
	orch := pipeline.NewOrchestrator(orchOpts, report.NewReporter(cfg.ImageExtensions), runLog)

	showProgress := isatty.IsTerminal(os.Stdout.Fd()) && out == os.Stdout
	w := walker.New(orch, walker.Options{
		ImageExtensions: cfg.ImageExtensions,
		Pattern:         cfg.Pattern,
		Exclude:         cfg.Exclude,
		MaxConcurrency:  cfg.MaxConcurrency,
		Ignore:          runOutputs(cfg),
		OnResult: func(result models.EntryResult, done, total int) {
			runLog.LogEntryResult(result)
			if showProgress {
				consoleLog.LogProgress(done, total)
			}
		},
	}, runLog)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runLog.Infof("Walking %s (pattern %q, summary %s)", root, cfg.Pattern, cfg.SummaryFile)
	summary, walkErr := w.Walk(ctx, root, sink)
	closeErr := sink.Close()
	runLog.LogSummary(summary)
	if warning, ok := display.WarnFailedEntries(summary, fileLog.RunFile()); ok {
		warning.Display(cmd.ErrOrStderr())
	}

	if cfg.History.Enabled {
		recordHistory(ctx, cfg.History.DBPath, summary, runLog)
	}

	if walkErr != nil {
		return walkErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close summary file: %w", closeErr)
	}

	fmt.Fprintf(out, "Summary written to %s (run %s)\n", cfg.SummaryFile, summary.RunID)
	return nil
}

// orchestratorOptions points workers at this binary and the filter at the
// configured command, or at the built-in sentence filter.
func orchestratorOptions(cfg *config.Config) (pipeline.Options, error) {
	self, err := executable()
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("failed to resolve executable: %w", err)
	}

	opts := pipeline.Options{
		WorkerPath:    self,
		WorkerArgs:    []string{WorkerCommandName},
		FilterPath:    self,
		FilterArgs:    []string{WorkerCommandName, pipeline.VerbSentences},
		ReportDir:     cfg.ReportDir,
		FilterTimeout: cfg.Filter.Timeout,
	}
	if cfg.Filter.Command != "" {
		opts.FilterPath = cfg.Filter.Command
		opts.FilterArgs = cfg.Filter.Args
	}
	return opts, nil
}

// runOutputs lists the paths a run writes, so a walk of a directory that
// contains them does not feed them through its own pipelines.
func runOutputs(cfg *config.Config) []string {
	paths := []string{
		cfg.SummaryFile,
		cfg.SummaryFile + ".lock",
		cfg.ReportDir,
		cfg.LogDir,
	}
	if cfg.History.Enabled {
		db := cfg.History.DBPath
		paths = append(paths, db, db+"-wal", db+"-shm", db+"-journal")
	}
	return paths
}

func recordHistory(ctx context.Context, dbPath string, summary models.Summary, log logger.RunLogger) {
	// A canceled walk is still recorded.
	ctx = context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := history.NewStore(dbPath)
	if err != nil {
		log.Warnf("history disabled for this run: %v", err)
		return
	}
	defer store.Close()

	if err := store.RecordRun(ctx, summary); err != nil {
		log.Warnf("failed to record run %s: %v", summary.RunID, err)
		return
	}
	log.Debugf("recorded run %s in %s", summary.RunID, dbPath)
}

func checkReadableDir(root string) error {
	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("cannot open directory: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}
	if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
		return fmt.Errorf("cannot read directory: %w", err)
	}
	return nil
}

// dryRun prints the pipeline each entry would get.
func dryRun(out io.Writer, root string, cfg *config.Config) error {
	listing, err := fileutil.ListEntries(root, fileutil.ListOptions{Exclude: cfg.Exclude})
	if err != nil {
		return fmt.Errorf("failed to enumerate %s: %w", root, err)
	}

	fmt.Fprintf(out, "Dry run of %s (pattern %q)\n", root, cfg.Pattern)
	for _, name := range listing.Names {
		entry, err := fileutil.StatEntry(root, name)
		if err != nil {
			fmt.Fprintf(out, "  %-30s skipped: %v\n", name, err)
			continue
		}
		topo := models.ChooseTopology(entry, cfg.ImageExtensions, cfg.Pattern)
		fmt.Fprintf(out, "  %-30s %-10s %s -> %s\n", name, entry.Kind, topo.Kind,
			filepath.Join(cfg.ReportDir, name+pipeline.ReportSuffix))
	}
	for _, name := range listing.Excluded {
		fmt.Fprintf(out, "  %-30s excluded\n", name)
	}
	return nil
}

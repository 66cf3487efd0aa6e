package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sysdump/internal/config"
	"github.com/nao1215/sysdump/internal/database"
	"github.com/nao1215/sysdump/internal/dumper"
	"github.com/nao1215/sysdump/internal/log"
	"github.com/nao1215/sysdump/internal/metrics"
	"github.com/nao1215/sysdump/internal/model"
	"github.com/nao1215/sysdump/internal/pipeline"
)

// NewDumpCmd creates the dump command.
func NewDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the selected sections of the host state",
		Long: `Dump collects the selected sections and writes them as text, Markdown
or JSON Lines to stdout, a file or a zip archive.

Sections are always emitted in this order: base, cpu, cpufreq, mem, proc,
net, storage, ipc, ability, faultlog, env, cmd, file. Memory, process and
crash log sections are produced in chunks of --chunk-size rows.

Examples:
  # CPU and memory overview
  sysdump dump --cpu --mem

  # One process, sampled every second five times
  sysdump dump --mem -p 1234 --interval 1s --samples 5

  # Everything, archived with a sha3-256 digest next to the zip
  sysdump dump --all --zip

  # Processes whose row mentions java, PID and COMM columns only
  sysdump dump --proc --match java --columns 1,4

  # Properties of two units
  sysdump dump -s sshd -s cron

  # Stage list from .sysdump.yaml
  sysdump dump --preset triage`,
		Args: cobra.NoArgs,
		RunE: runDumpCmd,
	}

	// Section flags
	cmd.Flags().BoolP("all", "a", false, "Dump every section that needs no argument")
	cmd.Flags().Bool("base", false, "Dump tool version, kernel release and hostname")
	cmd.Flags().Bool("cpu", false, "Dump CPU times")
	cmd.Flags().Bool("cpufreq", false, "Dump CPU model and clock per processor")
	cmd.Flags().Bool("mem", false, "Dump memory usage")
	cmd.Flags().Bool("proc", false, "Dump the process table")
	cmd.Flags().IntP("pid", "p", 0, "Restrict --mem, --proc, --net and --storage to one process")
	cmd.Flags().Duration("interval", 0, "Sample memory periodically at this interval")
	cmd.Flags().Int("samples", config.DefaultSamples, "Number of periodic memory samples")
	cmd.Flags().Bool("net", false, "Dump network interface counters")
	cmd.Flags().Bool("storage", false, "Dump block device statistics")
	cmd.Flags().Bool("ipc", false, "Dump System V IPC tables")
	cmd.Flags().Bool("ability", false, "List systemd units")
	cmd.Flags().BoolP("list-abilities", "l", false, "List systemd units (same as --ability)")
	cmd.Flags().StringArrayP("service", "s", nil, "Dump the properties of a systemd unit (repeatable)")
	cmd.Flags().BoolP("fault-log", "e", false, "Dump crash logs")
	cmd.Flags().String("fault-log-dir", config.DefaultFaultLogDir, "Directory crash logs are read from")
	cmd.Flags().Bool("env", false, "Dump environment variables with secrets masked")
	cmd.Flags().StringArray("cmd", nil, "Dump the output of a command (repeatable)")
	cmd.Flags().Duration("cmd-timeout", config.DefaultCmdTimeout, "Timeout of every --cmd command")
	cmd.Flags().StringArray("file", nil, "Dump the content of a file (repeatable)")
	cmd.Flags().String("preset", "", "Run a stage list from the configuration file")
	cmd.Flags().Bool("list-presets", false, "List the presets of the configuration file and exit")

	// Transform flags
	cmd.Flags().String("match", "", "Keep only rows matching this regular expression")
	cmd.Flags().String("columns", "", "Keep only these 1-based columns, e.g. 1,3")

	// Output flags
	cmd.Flags().BoolP("zip", "z", false, "Write the report into a zip archive (mutually exclusive with --output)")
	cmd.Flags().String("zip-dir", config.XDGZipDir(), "Directory zip archives are written to")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file (creates directories if needed)")
	cmd.Flags().StringP("format", "f", config.DefaultFormat, "Report format: text, markdown or json")
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize, "Rows per chunk of chunked sections (0 disables chunking)")
	cmd.Flags().String("metrics-file", "", "Write stage metrics in Prometheus textfile format")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().Bool("log-json", false, "Write logs as JSON")

	// Environment
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .sysdump.yaml in current or home directory)")
	cmd.Flags().String("proc-mount", config.DefaultProcMount, "procfs mount point")
	cmd.Flags().String("sys-mount", config.DefaultSysMount, "sysfs mount point")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")
	_ = cmd.Flags().MarkHidden("db-dir")

	return cmd
}

// runDumpCmd executes the dump command.
func runDumpCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	listPresets, err := cmd.Flags().GetBool("list-presets")
	if err != nil {
		return err
	}
	if listPresets {
		return printPresets(cmd.OutOrStdout(), cfg.File)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runDump(ctx, cfg, dumpIO{
		out:  cmd.OutOrStdout(),
		args: os.Args,
	}, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	bools := []struct {
		name string
		dst  *bool
	}{
		{"all", &cfg.All},
		{"base", &cfg.Base},
		{"cpu", &cfg.CPU},
		{"cpufreq", &cfg.CPUFreq},
		{"mem", &cfg.Memory},
		{"proc", &cfg.Process},
		{"net", &cfg.Net},
		{"storage", &cfg.Storage},
		{"ipc", &cfg.IPC},
		{"ability", &cfg.Abilities},
		{"fault-log", &cfg.FaultLog},
		{"env", &cfg.Env},
		{"zip", &cfg.Compress},
		{"no-history", &cfg.NoHistory},
		{"log-json", &cfg.LogJSON},
	}
	for _, b := range bools {
		v, err := flags.GetBool(b.name)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	listAbilities, err := flags.GetBool("list-abilities")
	if err != nil {
		return nil, err
	}
	cfg.Abilities = cfg.Abilities || listAbilities

	strs := []struct {
		name string
		dst  *string
	}{
		{"fault-log-dir", &cfg.FaultLogDir},
		{"preset", &cfg.Preset},
		{"match", &cfg.Match},
		{"columns", &cfg.Columns},
		{"zip-dir", &cfg.ZipDir},
		{"output", &cfg.OutputFile},
		{"format", &cfg.Format},
		{"metrics-file", &cfg.MetricsFile},
		{"config", &cfg.ConfigFilePath},
		{"proc-mount", &cfg.ProcMount},
		{"sys-mount", &cfg.SysMount},
		{"db-dir", &cfg.DBDir},
	}
	for _, s := range strs {
		v, err := flags.GetString(s.name)
		if err != nil {
			return nil, err
		}
		*s.dst = v
	}

	if cfg.Services, err = flags.GetStringArray("service"); err != nil {
		return nil, err
	}
	if cfg.Commands, err = flags.GetStringArray("cmd"); err != nil {
		return nil, err
	}
	if cfg.Files, err = flags.GetStringArray("file"); err != nil {
		return nil, err
	}
	if cfg.Pid, err = flags.GetInt("pid"); err != nil {
		return nil, err
	}
	if cfg.Samples, err = flags.GetInt("samples"); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = flags.GetInt("chunk-size"); err != nil {
		return nil, err
	}
	if cfg.Interval, err = flags.GetDuration("interval"); err != nil {
		return nil, err
	}
	if cfg.CmdTimeout, err = flags.GetDuration("cmd-timeout"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently continue without one.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.File.ApplyDefaults(cfg, flags.Changed)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	return cfg, nil
}

// setupLogger creates the secure logger for the run.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// dumpIO holds what runDump reads from and writes to outside the config.
type dumpIO struct {
	// out receives the report when neither --output nor --zip is set, and
	// the archive summary when --zip is set.
	out io.Writer

	// args is the command line recorded in the history.
	args []string

	// options configure the stage registry.
	options []dumper.Option
}

// runDump builds the plan, runs it and records the run.
func runDump(ctx context.Context, cfg *config.Config, dio dumpIO, logger *slog.Logger) error {
	stages, err := buildPlan(cfg)
	if err != nil {
		return err
	}

	output := dio.out
	if cfg.OutputFile != "" {
		f, err := createOutputFile(cfg.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	run := model.NewRunContext(cfg.Params(getVersion()), output, logger)
	run.Usage.Arguments = dio.args
	run.Usage.Sections = planSections(stages)
	run.Usage.Compress = cfg.Compress
	if cfg.OutputFile != "" {
		run.Usage.Output = cfg.OutputFile
	}

	logger.Info("starting dump",
		"stages", len(stages),
		"sections", run.Usage.Sections,
		"compress", cfg.Compress,
	)

	recorder := metrics.NewRecorder()
	driver := pipeline.New(
		dumper.NewRegistry(dio.options...),
		pipeline.WithLogger(logger),
		pipeline.WithObserver(recorder),
	)
	progress := pipeline.NewContextProgress(ctx, pipeline.WithProgressLogger(logger))

	startTime := time.Now()
	_, runErr := driver.Execute(ctx, stages, run, progress)
	run.Usage.Finish(run.Usage.Canceled, runErr)

	logger.Info("dump finished",
		"elapsed", time.Since(startTime).Round(time.Millisecond),
		"status", run.Usage.Status,
		"stageFailures", run.Usage.StageFailures(),
	)
	if failed := run.Usage.FailedSections(); len(failed) > 0 {
		logger.Warn("some sections failed", "sections", failed)
	}

	if !cfg.NoHistory {
		if err := saveRun(ctx, cfg.DBDir, run.Usage); err != nil {
			logger.Error("failed to save run history", "error", err)
		}
	}

	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("dump failed: %w", runErr)
	}

	if cfg.Compress && run.Usage.Output != "" {
		fmt.Fprintf(dio.out, "Archive: %s\n", run.Usage.Output)
		fmt.Fprintf(dio.out, "SHA3-256: %s\n", run.Usage.Digest)
	}

	if run.Usage.Canceled {
		return errors.New("dump canceled")
	}
	return nil
}

// createOutputFile creates the report file and its parent directories.
// Reports may contain sensitive information, so the file is only readable
// by the owner.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// saveRun records the usage record in the history database.
// The save is not tied to ctx so a canceled run is still recorded.
func saveRun(ctx context.Context, dbDir string, usage *model.UsageRecord) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return db.SaveRun(context.WithoutCancel(ctx), usage)
}

// printPresets lists the presets of the configuration file.
func printPresets(w io.Writer, file *config.File) error {
	names := file.PresetNames()
	if len(names) == 0 {
		fmt.Fprintln(w, "No presets defined. Run 'sysdump init' to create a configuration file.")
		return nil
	}
	for _, name := range names {
		p := file.Presets[name]
		fmt.Fprintf(w, "%s\t%d stages", name, len(p.Stages))
		if p.Description != "" {
			fmt.Fprintf(w, "\t%s", strings.TrimSpace(p.Description))
		}
		fmt.Fprintln(w)
	}
	return nil
}
